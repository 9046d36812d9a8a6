package consts

const (
	// Speech decode parameters. Inbound voice notes are WhatsApp/Twilio OGG Opus.
	DefaultSampleRate = 16000
	SpeechLanguage    = "en-US"

	MaxAudioSize = 25 * 1024 * 1024 // 25MB

	StorageScheme = "gs"

	TranscriptOpenTag  = "<transcript>"
	TranscriptCloseTag = "</transcript>"

	// Document field names shared with the webhook and flow services.
	FieldMessageSid         = "MessageSid"
	FieldBody               = "Body"
	FieldAudioURI           = "gcsAudioUri"
	FieldFlowResponses      = "flowResponses"
	FieldOriginalMessageSid = "originalMessageSid"
	FieldUserResponse       = "userResponse"
	FieldValue              = "value"

	CollectionMessages    = "messages"
	CollectionFlowHistory = "flow_history"
	CollectionContacts    = "contacts"

	DefaultLanguage = "en"
	DescribeTemp    = 0.5
)

// TagTranscript wraps text the way flow history stores voice answers.
func TagTranscript(text string) string {
	return TranscriptOpenTag + text + TranscriptCloseTag
}
