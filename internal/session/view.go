package session

import (
	"fmt"
	"strings"

	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/pokedex"
)

const topRows = 5

// ProbabilityRow is one line of the probability chart or table.
type ProbabilityRow struct {
	Label   string
	Display string
	Percent float64 // 0..100
	Text    string
}

// LabelOption is an entry of the correction picker.
type LabelOption struct {
	Label   string
	Display string
	Current bool
}

// ViewModel is everything the dashboard template needs. It is derived from
// a session and never mutates it.
type ViewModel struct {
	SessionID string
	State     string

	HasUpload bool
	Filename  string

	HasResult      bool
	Title          string // "🐱 CAT"
	Confidence     string // "97.0%"
	ConfidencePct  float64
	LowConfidence  bool
	Warning        string
	Card           pokedex.Card
	Top            []ProbabilityRow
	All            []ProbabilityRow
	AskFeedback    bool
	ShowCorrection bool
	Options        []LabelOption

	FeedbackGiven bool
	Notice        string
	Error         string
}

// View projects s for rendering.
func View(s *Session, dex *pokedex.Dex, labels []string, threshold float64) ViewModel {
	vm := ViewModel{SessionID: s.ID, State: s.State.String(), Error: s.Err}

	if s.Upload != nil {
		vm.HasUpload = true
		vm.Filename = s.Upload.Filename
	}

	if s.Result == nil {
		return vm
	}

	r := s.Result
	card := dex.Card(r.PredictedLabel)
	vm.HasResult = true
	vm.Card = card
	vm.Title = card.Emoji + " " + strings.ToUpper(card.Name)
	vm.Confidence = fmt.Sprintf("%.1f%%", r.Confidence*100)
	vm.ConfidencePct = r.Confidence * 100
	vm.LowConfidence = s.LowConfidence
	if s.LowConfidence {
		vm.Warning = fmt.Sprintf("The confidence is %.1f%%, which is below %.0f%%. "+
			"This prediction might be incorrect. Please carefully verify the result "+
			"and provide your feedback to improve the model.", r.Confidence*100, threshold*100)
	}

	for i, lp := range r.Ranked() {
		row := ProbabilityRow{
			Label:   lp.Label,
			Display: dex.DisplayName(lp.Label),
			Percent: lp.Probability * 100,
			Text:    fmt.Sprintf("%.2f%%", lp.Probability*100),
		}
		vm.All = append(vm.All, row)
		if i < topRows {
			row.Text = fmt.Sprintf("%.1f%%", lp.Probability*100)
			vm.Top = append(vm.Top, row)
		}
	}

	vm.AskFeedback = s.State == AwaitingFeedback
	vm.ShowCorrection = vm.AskFeedback && s.ShowCorrection
	if vm.ShowCorrection {
		for _, label := range labels {
			vm.Options = append(vm.Options, LabelOption{
				Label:   label,
				Display: dex.DisplayName(label),
				Current: label == r.PredictedLabel,
			})
		}
	}

	if s.State == FeedbackRecorded && s.Feedback != nil {
		vm.FeedbackGiven = true
		if s.Feedback.Outcome == feedback.OutcomeCorrected {
			vm.Notice = fmt.Sprintf("Thank you for the correction! Image saved as %s.",
				dex.Card(s.Feedback.AssertedLabel).Name)
		} else {
			vm.Notice = "Thank you for your feedback! Image added to dataset."
		}
	}
	return vm
}
