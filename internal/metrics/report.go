package metrics

import (
	"fmt"
	"strings"
)

// Report holds the before/after quality measurements. A nil field means the
// value is undefined for the given input (for example no non-speech frames)
// and encodes as JSON null.
type Report struct {
	NonSpeechRMSInputDB  *float64 `json:"nsRmsInputDb"`
	NonSpeechRMSOutputDB *float64 `json:"nsRmsOutputDb"`
	NonSpeechReductionDB *float64 `json:"nsReductionDb"`

	SpeechRMSInputDB   *float64 `json:"spRmsInputDb"`
	SpeechRMSOutputDB  *float64 `json:"spRmsOutputDb"`
	SpeechLevelDeltaDB *float64 `json:"speechLevelDeltaDb"`

	SNRInput  *float64 `json:"snrInput"`
	SNROutput *float64 `json:"snrOutput"`
	SNRDelta  *float64 `json:"snrDelta"`

	LSDMeanDB   *float64 `json:"lsdMeanDb"`
	LSDMedianDB *float64 `json:"lsdMedDb"`

	MFCCMean   *float64 `json:"mfccMean"`
	MFCCMedian *float64 `json:"mfccMed"`
}

// Entry is one named report value.
type Entry struct {
	Key   string
	Value *float64
}

// Entries returns the report values in a stable order, keyed by their JSON
// names.
func (r *Report) Entries() []Entry {
	return []Entry{
		{"nsRmsInputDb", r.NonSpeechRMSInputDB},
		{"nsRmsOutputDb", r.NonSpeechRMSOutputDB},
		{"nsReductionDb", r.NonSpeechReductionDB},
		{"spRmsInputDb", r.SpeechRMSInputDB},
		{"spRmsOutputDb", r.SpeechRMSOutputDB},
		{"speechLevelDeltaDb", r.SpeechLevelDeltaDB},
		{"snrInput", r.SNRInput},
		{"snrOutput", r.SNROutput},
		{"snrDelta", r.SNRDelta},
		{"lsdMeanDb", r.LSDMeanDB},
		{"lsdMedDb", r.LSDMedianDB},
		{"mfccMean", r.MFCCMean},
		{"mfccMed", r.MFCCMedian},
	}
}

// String renders the report as "key=value" pairs, with "n/a" for undefined
// entries.
func (r *Report) String() string {
	var sb strings.Builder
	for i, e := range r.Entries() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Key)
		sb.WriteByte('=')
		if e.Value == nil {
			sb.WriteString("n/a")
		} else {
			fmt.Fprintf(&sb, "%.2f", *e.Value)
		}
	}
	return sb.String()
}

func ptr(v float64) *float64 { return &v }

// diff returns a-b, or nil when either side is undefined.
func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return ptr(*a - *b)
}
