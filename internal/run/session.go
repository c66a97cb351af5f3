package run

import (
	"math/big"
	"time"

	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// TopListSize is how many record entries a session keeps per category.
const TopListSize = 10

// Entry is one remembered evaluation.
type Entry struct {
	Num   *big.Int `json:"num"`
	Steps uint64   `json:"steps"`
	Peak  *big.Int `json:"peak"`
}

// Session aggregates what one run observed. The report package renders
// it; nothing in here touches the store.
type Session struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`

	Planned         uint64 `json:"planned"`
	Tested          uint64 `json:"tested"`
	Attempts        uint64 `json:"attempts"`
	DuplicatesCache uint64 `json:"duplicates_cache"`
	DuplicatesStore uint64 `json:"duplicates_store"`
	TotalSteps      uint64 `json:"total_steps"`

	// ShortestSteps and ShortestNum describe the quickest sequence this
	// session; meaningful only once Tested is nonzero.
	ShortestSteps uint64   `json:"shortest_steps"`
	ShortestNum   *big.Int `json:"shortest_num,omitempty"`

	// TopSequences and TopPeaks hold this session's best evaluations,
	// best first.
	TopSequences []Entry `json:"top_sequences"`
	TopPeaks     []Entry `json:"top_peaks"`

	// Anomalies are evaluations that exhausted the step limit without
	// reaching 1. They are findings, not failures; the run keeps going.
	Anomalies []Entry `json:"anomalies,omitempty"`

	NewLongestRecord bool `json:"new_longest_record"`
	NewPeakRecord    bool `json:"new_peak_record"`

	// AllTime is the updated all-time document this session committed.
	AllTime *store.AllTimeStats `json:"all_time"`
}

// Rate returns evaluations per second over the session.
func (s *Session) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Tested) / s.Elapsed.Seconds()
}

// MeanSteps returns the average sequence length this session.
func (s *Session) MeanSteps() float64 {
	if s.Tested == 0 {
		return 0
	}
	return float64(s.TotalSteps) / float64(s.Tested)
}

func (s *Session) observe(num *big.Int, steps uint64, peak *big.Int) {
	s.Tested++
	s.TotalSteps += steps
	if s.ShortestNum == nil || steps < s.ShortestSteps {
		s.ShortestSteps = steps
		s.ShortestNum = num
	}
	e := Entry{Num: num, Steps: steps, Peak: peak}
	s.noteSequence(e)
	s.notePeak(e)
}

// noteSequence files e among the longest sequences seen this session.
func (s *Session) noteSequence(e Entry) {
	i := len(s.TopSequences)
	for i > 0 && s.TopSequences[i-1].Steps < e.Steps {
		i--
	}
	if i >= TopListSize {
		return
	}
	s.TopSequences = append(s.TopSequences, Entry{})
	copy(s.TopSequences[i+1:], s.TopSequences[i:])
	s.TopSequences[i] = e
	if len(s.TopSequences) > TopListSize {
		s.TopSequences = s.TopSequences[:TopListSize]
	}
}

// notePeak files e among the highest peaks seen this session.
func (s *Session) notePeak(e Entry) {
	i := len(s.TopPeaks)
	for i > 0 && s.TopPeaks[i-1].Peak.Cmp(e.Peak) < 0 {
		i--
	}
	if i >= TopListSize {
		return
	}
	s.TopPeaks = append(s.TopPeaks, Entry{})
	copy(s.TopPeaks[i+1:], s.TopPeaks[i:])
	s.TopPeaks[i] = e
	if len(s.TopPeaks) > TopListSize {
		s.TopPeaks = s.TopPeaks[:TopListSize]
	}
}
