package models

// Label is the classification outcome, a small integer enum.
type Label int

const (
	LabelBenign Label = iota
	LabelMalignant
	LabelOther
)

// String returns the API representation of the label. Unknown values map
// to OTHER.
func (l Label) String() string {
	switch l {
	case LabelBenign:
		return "BENIGN"
	case LabelMalignant:
		return "MALIGNANT"
	default:
		return "OTHER"
	}
}

// Predict is one classification result. Immutable once persisted:
// re-classification produces a new Predict and a new Task.
type Predict struct {
	ID      string
	FileID  string
	ModelID string
	Result  Label
	// Probability is the classifier's confidence for Result, in [0, 1].
	Probability float64
}
