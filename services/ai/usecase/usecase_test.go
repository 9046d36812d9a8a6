package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/gen"
	"github.com/xilidan/signposting/services/ai/entity"
	"github.com/xilidan/signposting/services/ai/fetcher"
	"github.com/xilidan/signposting/services/ai/llm"
	"github.com/xilidan/signposting/services/ai/storage"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeFetcher struct {
	root string
	err  error

	mu   sync.Mutex
	dirs []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	dir, err := os.MkdirTemp(f.root, "media-*")
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, filepath.Base(rawURL)+".ogg")
	if err := os.WriteFile(p, []byte("audio"), 0o600); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	return &fetcher.Media{Path: p, Dir: dir}, nil
}

type fakeBlob struct {
	err error

	mu    sync.Mutex
	calls int
}

func (b *fakeBlob) Upload(_ context.Context, localPath string) (string, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	return "gs://voice/" + filepath.Base(localPath), nil
}

type fakeSpeech struct {
	err error
}

func (s *fakeSpeech) Transcribe(_ context.Context, uri string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "transcript of " + filepath.Base(uri), nil
}

func newUsecase(t *testing.T, deps Deps) (Usecase, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{root: t.TempDir()}
	if deps.Fetcher == nil {
		deps.Fetcher = f
	}
	if deps.Blob == nil {
		deps.Blob = &fakeBlob{}
	}
	if deps.Speech == nil {
		deps.Speech = &fakeSpeech{}
	}
	if deps.Storage == nil {
		deps.Storage = storage.NewMemory("EnhamPA_profile")
	}
	deps.IDs = gen.Static(uuid.MustParse("6f1c2a7e-0000-4000-8000-000000000001"))
	return New(&config.Config{OpenAI: config.OpenAIConfig{QAInstructions: "be brief"}}, deps), f
}

func assertRemoved(t *testing.T, dirs []string) {
	t.Helper()
	if len(dirs) == 0 {
		t.Fatal("fetcher created no directories")
	}
	for _, d := range dirs {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			t.Errorf("temp dir %s still exists (err=%v)", d, err)
		}
	}
}

func TestTranscribe(t *testing.T) {
	u, f := newUsecase(t, Deps{})

	res, err := u.Transcribe(context.Background(), "https://api.twilio.com/Media/ME1")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.StorageURI != "gs://voice/ME1.ogg" || res.Transcript != "transcript of ME1.ogg" {
		t.Errorf("result = %+v", res)
	}
	assertRemoved(t, f.dirs)
}

func TestTranscribeFetchFailure(t *testing.T) {
	blob := &fakeBlob{}
	u, _ := newUsecase(t, Deps{Fetcher: &fakeFetcher{err: fetcher.ErrFetch}, Blob: blob})

	_, err := u.Transcribe(context.Background(), "https://api.twilio.com/Media/ME1")
	if !errors.Is(err, ErrMediaUnavailable) {
		t.Fatalf("error = %v, want ErrMediaUnavailable", err)
	}
	if blob.calls != 0 {
		t.Errorf("upload attempted %d times after fetch failure", blob.calls)
	}
}

func TestTranscribeCleansUpOnFailure(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
	}{
		{"upload failure", Deps{Blob: &fakeBlob{err: errors.New("bucket missing")}}},
		{"transcription failure", Deps{Speech: &fakeSpeech{err: errors.New("bad audio")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, f := newUsecase(t, tt.deps)
			if _, err := u.Transcribe(context.Background(), "https://api.twilio.com/Media/ME1"); err == nil {
				t.Fatal("expected error")
			}
			assertRemoved(t, f.dirs)
		})
	}
}

func seedConversation(m *storage.Memory, sid string) {
	m.Insert("messages", bson.D{{Key: "MessageSid", Value: sid}, {Key: "Body", Value: ""}})
	m.Insert("flow_history", bson.D{{Key: "flowResponses", Value: bson.A{
		bson.D{{Key: "originalMessageSid", Value: sid}, {Key: "userResponse", Value: ""}},
	}}})
	m.Insert("contacts", bson.D{{Key: "EnhamPA_profile", Value: bson.D{
		{Key: "needs", Value: bson.A{
			bson.D{{Key: "originalMessageSid", Value: sid}, {Key: "value", Value: ""}},
		}},
	}}})
}

func field(doc bson.D, key string) any {
	for _, e := range doc {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

func TestHandleTranscription(t *testing.T) {
	mem := storage.NewMemory("EnhamPA_profile")
	seedConversation(mem, "SM123")
	u, _ := newUsecase(t, Deps{Storage: mem})

	resp, err := u.HandleTranscription(context.Background(), &entity.TranscriptionRequest{
		MediaURL:  "https://api.twilio.com/Media/ME9",
		MessageID: "SM123",
	})
	if err != nil {
		t.Fatalf("HandleTranscription() error = %v", err)
	}
	if resp.Status != 200 || resp.Message != "Message updated successfully with transcript of ME9.ogg" {
		t.Errorf("response = %+v", resp)
	}
	for name, step := range map[string]entity.StepOutcome{
		"messages": resp.Updates.Message, "flow_history": resp.Updates.FlowHistory, "contacts": resp.Updates.Contact,
	} {
		if step.Status != entity.StepUpdated {
			t.Errorf("%s status = %s", name, step.Status)
		}
	}

	msg := mem.Documents("messages")[0]
	if field(msg, "Body") != "transcript of ME9.ogg" || field(msg, "gcsAudioUri") != "gs://voice/ME9.ogg" {
		t.Errorf("message = %v", msg)
	}
	entry := field(mem.Documents("flow_history")[0], "flowResponses").(bson.A)[0].(bson.D)
	if field(entry, "userResponse") != "<transcript>transcript of ME9.ogg</transcript>" {
		t.Errorf("flow entry = %v", entry)
	}
	if mem.Open() != 0 {
		t.Errorf("%d database handles left open", mem.Open())
	}
}

func TestHandleTranscriptionNotFoundIsNotAFailure(t *testing.T) {
	mem := storage.NewMemory("EnhamPA_profile")
	u, _ := newUsecase(t, Deps{Storage: mem})

	resp, err := u.HandleTranscription(context.Background(), &entity.TranscriptionRequest{MediaURL: "https://x/ME1", MessageID: "SM404"})
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if resp.Updates.Message.Status != entity.StepNotFound || resp.Updates.Contact.Status != entity.StepNotFound {
		t.Errorf("updates = %+v", resp.Updates)
	}
}

type failingRecords struct {
	storage.Records
	released bool
}

func (r *failingRecords) UpdateFlowResponse(context.Context, string, string, string) (bool, error) {
	return false, errors.New("write conflict")
}

func (r *failingRecords) Release() {
	r.released = true
	r.Records.Release()
}

type failingStore struct {
	*storage.Memory
	acquireErr error
	records    *failingRecords
}

func (s *failingStore) Acquire(ctx context.Context) (storage.Records, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	inner, err := s.Memory.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	s.records = &failingRecords{Records: inner}
	return s.records, nil
}

func TestHandleTranscriptionReportsPartialFailure(t *testing.T) {
	mem := storage.NewMemory("EnhamPA_profile")
	seedConversation(mem, "SM1")
	store := &failingStore{Memory: mem}
	u, _ := newUsecase(t, Deps{Storage: store})

	resp, err := u.HandleTranscription(context.Background(), &entity.TranscriptionRequest{MediaURL: "https://x/ME1", MessageID: "SM1"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("error = %v, want ErrPersistence", err)
	}
	if resp == nil || resp.Status != 500 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Updates.Message.Status != entity.StepUpdated ||
		resp.Updates.FlowHistory.Status != entity.StepFailed ||
		resp.Updates.Contact.Status != entity.StepUpdated {
		t.Errorf("updates = %+v", resp.Updates)
	}
	if resp.Updates.FlowHistory.Error != "write conflict" {
		t.Errorf("flow error = %q", resp.Updates.FlowHistory.Error)
	}
	if !store.records.released {
		t.Error("records were not released")
	}
}

func TestApplyTranscriptionAcquireFailure(t *testing.T) {
	store := &failingStore{Memory: storage.NewMemory("p"), acquireErr: errors.New("pool exhausted")}
	u, _ := newUsecase(t, Deps{Storage: store})

	outcome, err := u.ApplyTranscription(context.Background(), "SM1", &entity.TranscriptionResult{Transcript: "x", StorageURI: "gs://b/o"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("error = %v", err)
	}
	if !outcome.Failed() || outcome.Contact.Status != entity.StepFailed {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestHandleTranscriptionConcurrentDistinctIDs(t *testing.T) {
	mem := storage.NewMemory("EnhamPA_profile")
	var sids []string
	for i := 0; i < 10; i++ {
		sid := fmt.Sprintf("SM%d", i)
		sids = append(sids, sid)
		seedConversation(mem, sid)
	}
	u, f := newUsecase(t, Deps{Storage: mem})

	var wg sync.WaitGroup
	for i, sid := range sids {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()
			_, err := u.HandleTranscription(context.Background(), &entity.TranscriptionRequest{
				MediaURL:  fmt.Sprintf("https://x/ME%d", i),
				MessageID: sid,
			})
			if err != nil {
				t.Error(err)
			}
		}(i, sid)
	}
	wg.Wait()

	for _, msg := range mem.Documents("messages") {
		sid := field(msg, "MessageSid").(string)
		want := "transcript of ME" + strings.TrimPrefix(sid, "SM") + ".ogg"
		if field(msg, "Body") != want {
			t.Errorf("%s body = %v, want %s", sid, field(msg, "Body"), want)
		}
	}
	assertRemoved(t, f.dirs)
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []llm.Prompt
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, p llm.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("description %d", len(g.prompts)), nil
}

type fakeTranslator struct {
	lang string
	err  error
}

func (f *fakeTranslator) Translate(_ context.Context, texts []string, lang string) ([]string, error) {
	f.lang = lang
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = lang + ":" + t
	}
	return out, nil
}

func signpostingRequest(lang string) *entity.SignpostingRequest {
	return &entity.SignpostingRequest{
		Language: lang,
		Category: "Mental health",
		Options: []entity.SignpostingOption{
			{Name: "Mind", ExternalURL: "https://mind.org.uk", AreaCovered: "Wales"},
			{Name: "Samaritans", ExternalURL: "https://samaritans.org", AreaCovered: "UK"},
		},
	}
}

func TestDescribeOptions(t *testing.T) {
	g := &fakeGenerator{}
	tr := &fakeTranslator{}
	u, _ := newUsecase(t, Deps{Signposting: g, Translator: tr})

	got, err := u.DescribeOptions(context.Background(), signpostingRequest("en"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"description 1\nWebsite: https://mind.org.uk\nLocation: Wales",
		"description 2\nWebsite: https://samaritans.org\nLocation: UK",
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("DescribeOptions() = %q", got)
	}
	if tr.lang != "" {
		t.Error("english output must not be translated")
	}

	p := g.prompts[0]
	if p.Temperature == nil || *p.Temperature != 0.5 {
		t.Errorf("temperature = %v", p.Temperature)
	}
	if !strings.Contains(p.User, "The category is Mental health.") || !strings.Contains(p.User, `"name":"Mind"`) {
		t.Errorf("prompt = %q", p.User)
	}
}

func TestDescribeOptionsTranslates(t *testing.T) {
	tr := &fakeTranslator{}
	u, _ := newUsecase(t, Deps{Signposting: &fakeGenerator{}, Translator: tr})

	got, err := u.DescribeOptions(context.Background(), signpostingRequest("cy"))
	if err != nil {
		t.Fatal(err)
	}
	if tr.lang != "cy" || !strings.HasPrefix(got[0], "cy:description 1") {
		t.Errorf("DescribeOptions() = %q", got)
	}
}

func TestDescribeOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		lang string
	}{
		{"generator error", Deps{Signposting: &fakeGenerator{err: errors.New("quota")}}, "en"},
		{"translation error", Deps{Signposting: &fakeGenerator{}, Translator: &fakeTranslator{err: errors.New("quota")}}, "fr"},
		{"no generator", Deps{}, "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, _ := newUsecase(t, tt.deps)
			if _, err := u.DescribeOptions(context.Background(), signpostingRequest(tt.lang)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAnswerQuestion(t *testing.T) {
	g := &fakeGenerator{}
	u, _ := newUsecase(t, Deps{QA: g})

	answer, err := u.AnswerQuestion(context.Background(), &entity.QuestionRequest{UserMessage: "what do you do?"})
	if err != nil {
		t.Fatal(err)
	}
	if answer != "description 1" {
		t.Errorf("answer = %q", answer)
	}
	if g.prompts[0].System != "be brief" || g.prompts[0].User != "what do you do?" {
		t.Errorf("prompt = %+v", g.prompts[0])
	}
}
