package model

// QueryKind selects the pipeline path for a request.
type QueryKind string

const (
	QueryKindText  QueryKind = "text"
	QueryKindImage QueryKind = "image"
)

// QueryState is the single accumulator threaded through the query pipeline.
// It is owned by exactly one in-flight request; stages receive it by value
// and return the updated copy, so there is no aliasing between stages.
type QueryState struct {
	Query           string
	Kind            QueryKind
	ImageData       string
	ExtractedText   string
	Answer          *TextAnswer
	Recognition     *VisionRecognition
	BestMatch       *DocumentMetadata
	SafetyWarnings  []string
	Disclaimer      string
	ConfidenceScore float64
	Sources         []string
	Error           string
	// Err carries the typed cause when a stage halts on a classified
	// failure, so the HTTP layer can map it to a status code. Error alone
	// still marks the halt.
	Err error
}

// NewQueryState initializes the accumulator for one request.
func NewQueryState(kind QueryKind, query, imageData string) QueryState {
	return QueryState{
		Query:          query,
		Kind:           kind,
		ImageData:      imageData,
		SafetyWarnings: []string{},
		Sources:        []string{},
	}
}

// Failed reports whether a stage has halted the pipeline.
func (s QueryState) Failed() bool {
	return s.Error != ""
}
