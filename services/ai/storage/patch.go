package storage

import (
	"strconv"
	"strings"

	"github.com/xilidan/signposting/services/ai/consts"
	"go.mongodb.org/mongo-driver/bson"
)

// Documents are kept as bson.D by every driver so field order survives a
// read-patch-write cycle.

func lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func set(doc bson.D, key string, value any) bson.D {
	for i := range doc {
		if doc[i].Key == key {
			doc[i].Value = value
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: value})
}

func hasString(doc bson.D, key, want string) bool {
	v, ok := lookup(doc, key)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == want
}

// PatchMessage overwrites the body and audio URI of a message document.
func PatchMessage(doc bson.D, transcript, uri string) bson.D {
	doc = set(doc, consts.FieldBody, transcript)
	return set(doc, consts.FieldAudioURI, uri)
}

// PatchFlowResponse tags the transcript into the first flow response that
// originated from messageID. Later matches are left untouched.
func PatchFlowResponse(doc bson.D, messageID, transcript, uri string) (bson.D, bool) {
	v, ok := lookup(doc, consts.FieldFlowResponses)
	if !ok {
		return doc, false
	}
	responses, ok := v.(bson.A)
	if !ok {
		return doc, false
	}

	for i, item := range responses {
		entry, ok := item.(bson.D)
		if !ok || !hasString(entry, consts.FieldOriginalMessageSid, messageID) {
			continue
		}
		entry = set(entry, consts.FieldUserResponse, consts.TagTranscript(transcript))
		entry = set(entry, consts.FieldAudioURI, uri)
		responses[i] = entry
		return doc, true
	}
	return doc, false
}

// ProfileMatch locates the response object inside a contact profile.
// Index is -1 when the field holds a single object.
type ProfileMatch struct {
	Field string
	Index int
}

// Path is the dotted update path of the matched value below profileField.
func (m ProfileMatch) Path(profileField string) string {
	parts := []string{profileField, m.Field}
	if m.Index >= 0 {
		parts = append(parts, strconv.Itoa(m.Index))
	}
	return strings.Join(append(parts, consts.FieldValue), ".")
}

// FindProfileMatch scans profile fields in document order and returns the
// first field whose object, or first list element, came from messageID.
func FindProfileMatch(profile bson.D, messageID string) (ProfileMatch, bool) {
	for _, field := range profile {
		switch v := field.Value.(type) {
		case bson.A:
			for i, item := range v {
				if entry, ok := item.(bson.D); ok && hasString(entry, consts.FieldOriginalMessageSid, messageID) {
					return ProfileMatch{Field: field.Key, Index: i}, true
				}
			}
		case bson.D:
			if hasString(v, consts.FieldOriginalMessageSid, messageID) {
				return ProfileMatch{Field: field.Key, Index: -1}, true
			}
		}
	}
	return ProfileMatch{}, false
}

// PatchContactProfile overwrites the value of the first matching profile
// entry of a contact document and stops.
func PatchContactProfile(doc bson.D, profileField, messageID, transcript string) (bson.D, bool) {
	v, ok := lookup(doc, profileField)
	if !ok {
		return doc, false
	}
	profile, ok := v.(bson.D)
	if !ok {
		return doc, false
	}

	m, ok := FindProfileMatch(profile, messageID)
	if !ok {
		return doc, false
	}
	for i := range profile {
		if profile[i].Key != m.Field {
			continue
		}
		if m.Index < 0 {
			profile[i].Value = set(profile[i].Value.(bson.D), consts.FieldValue, transcript)
		} else {
			list := profile[i].Value.(bson.A)
			list[m.Index] = set(list[m.Index].(bson.D), consts.FieldValue, transcript)
		}
		break
	}
	return doc, true
}
