package pilot

import "fmt"

// Message is an action request posted to the Dispatcher. The set is closed:
// only the types in this file implement it.
type Message interface {
	Action() string
	isMessage()
}

// RunMessage runs SaveTaskID then CaptureAndSaveQAFeedback.
type RunMessage struct{}

// SaveTaskIDMessage runs SaveTaskID.
type SaveTaskIDMessage struct{}

// CaptureQAFeedbackMessage runs CaptureAndSaveQAFeedback.
type CaptureQAFeedbackMessage struct{}

func (RunMessage) Action() string               { return "RUN" }
func (SaveTaskIDMessage) Action() string        { return "SAVE_TASK_ID" }
func (CaptureQAFeedbackMessage) Action() string { return "CAPTURE_QA_FEEDBACK" }

func (RunMessage) isMessage()               {}
func (SaveTaskIDMessage) isMessage()        {}
func (CaptureQAFeedbackMessage) isMessage() {}

// ParseMessage maps an action tag to its Message.
func ParseMessage(action string) (Message, error) {
	switch action {
	case "RUN":
		return RunMessage{}, nil
	case "SAVE_TASK_ID":
		return SaveTaskIDMessage{}, nil
	case "CAPTURE_QA_FEEDBACK":
		return CaptureQAFeedbackMessage{}, nil
	}
	return nil, fmt.Errorf("pilot: unknown action %q", action)
}

// ContentRequest is a query answered by the ContentResponder. The set is closed.
type ContentRequest interface {
	Action() string
	isContentRequest()
}

// SelectOption clicks the element with the given id.
type SelectOption struct {
	ID string `json:"id"`
}

// ReadRatingsPreview reads the average rating and review count of a task page.
type ReadRatingsPreview struct{}

// ReadFullRatings reads the average and the four category counts of the feedback page.
type ReadFullRatings struct{}

// ScreenshotQAFeedback renders the feedback page body to a PNG data URL.
type ScreenshotQAFeedback struct{}

func (SelectOption) Action() string         { return "SELECT_OPTION" }
func (ReadRatingsPreview) Action() string   { return "READ_RATINGS_PREVIEW" }
func (ReadFullRatings) Action() string      { return "READ_FULL_RATINGS" }
func (ScreenshotQAFeedback) Action() string { return "SCREENSHOT_QA_FEEDBACK" }

func (SelectOption) isContentRequest()         {}
func (ReadRatingsPreview) isContentRequest()   {}
func (ReadFullRatings) isContentRequest()      {}
func (ScreenshotQAFeedback) isContentRequest() {}

// ParseContentRequest maps an action tag to its ContentRequest. id is only
// used by SELECT_OPTION.
func ParseContentRequest(action, id string) (ContentRequest, error) {
	switch action {
	case "SELECT_OPTION":
		if id == "" {
			return nil, fmt.Errorf("pilot: SELECT_OPTION needs an element id")
		}
		return SelectOption{ID: id}, nil
	case "READ_RATINGS_PREVIEW":
		return ReadRatingsPreview{}, nil
	case "READ_FULL_RATINGS":
		return ReadFullRatings{}, nil
	case "SCREENSHOT_QA_FEEDBACK":
		return ScreenshotQAFeedback{}, nil
	}
	return nil, fmt.Errorf("pilot: unknown content action %q", action)
}

// Response status values.
const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// Response is a content responder answer.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

func success(data any) Response { return Response{Status: StatusSuccess, Data: data} }
func failed() Response          { return Response{Status: StatusFailed} }

// OK reports whether the response succeeded.
func (r Response) OK() bool { return r.Status == StatusSuccess }
