package optimizer

import (
	"fmt"
	"time"
)

// Window is one (train, test) date pair. Train bounds are advisory context
// for the evaluation collaborator; the objective is always scored on the
// test segment. Single-window runs leave the train segment zero.
type Window struct {
	TrainStart time.Time
	TrainEnd   time.Time
	TestStart  time.Time
	TestEnd    time.Time
}

// Key is a stable identity used for evaluation dedup and logging.
func (w Window) Key() string {
	return fmt.Sprintf("%s_%s", w.TestStart.Format("2006-01-02"), w.TestEnd.Format("2006-01-02"))
}

// HasTrain reports whether the window carries a train segment.
func (w Window) HasTrain() bool {
	return !w.TrainStart.IsZero() && w.TrainEnd.After(w.TrainStart)
}

// SingleWindow yields the whole configured range once as a test segment.
func SingleWindow(start, end time.Time) []Window {
	return []Window{{TestStart: start, TestEnd: end}}
}

// WalkForwardWindows carves the range into consecutive non-overlapping
// train+test blocks of trainDays and testDays calendar days, advancing by
// trainDays+testDays each step. It stops once the next test segment would
// exceed the range end and fails when not even one block fits.
func WalkForwardWindows(start, end time.Time, trainDays, testDays int) ([]Window, error) {
	if trainDays <= 0 {
		return nil, &ConfigurationError{Field: "train_days", Value: trainDays, Reason: "must be positive"}
	}
	if testDays <= 0 {
		return nil, &ConfigurationError{Field: "test_days", Value: testDays, Reason: "must be positive"}
	}

	step := trainDays + testDays
	windows := []Window{}
	for current := start; !current.AddDate(0, 0, step).After(end); current = current.AddDate(0, 0, step) {
		trainEnd := current.AddDate(0, 0, trainDays)
		windows = append(windows, Window{
			TrainStart: current,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    trainEnd.AddDate(0, 0, testDays),
		})
	}
	if len(windows) == 0 {
		rangeDays := int(end.Sub(start).Hours() / 24)
		return nil, &InsufficientRangeError{RangeDays: rangeDays, RequiredDays: step}
	}
	return windows, nil
}
