package omr

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"
)

const defaultItemCount = 100

// SidecarInterpreter is the stand-in interpreter backend: it verifies the
// image is decodable, then reads the answer vector from a sidecar JSON file
// next to it and student/set hints from the file name
// (student-<number>__set-<code>). It exists so the rest of the pipeline can
// be exercised before a real bubble-detection backend is plugged in.
type SidecarInterpreter struct {
	itemCount int
	logger    zerolog.Logger
}

type sidecarPayload struct {
	Answers []string `json:"answers"`
}

// NewSidecarInterpreter constructs the sidecar backend. itemCount sets the
// length of the blank answer vector used when no sidecar file exists.
func NewSidecarInterpreter(itemCount int, logger zerolog.Logger) *SidecarInterpreter {
	if itemCount <= 0 {
		itemCount = defaultItemCount
	}
	return &SidecarInterpreter{
		itemCount: itemCount,
		logger:    logger.With().Str("component", "sidecar_interpreter").Logger(),
	}
}

// Interpret implements the Interpreter contract.
func (s *SidecarInterpreter) Interpret(ctx context.Context, imagePath string) (Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return Interpretation{}, err
	}

	file, err := os.Open(imagePath)
	if err != nil {
		return Interpretation{}, &ProcessingError{Reason: fmt.Sprintf("image %s not found", imagePath), Err: err}
	}
	defer file.Close()

	if _, _, err := image.DecodeConfig(file); err != nil {
		return Interpretation{}, &ProcessingError{Reason: "unable to read scan image", Err: err}
	}

	answers := s.loadSidecarAnswers(imagePath)
	if answers == nil {
		answers = make([]string, s.itemCount)
	}

	studentNumber, setCode := inferFromFilename(imagePath)

	issues := make([]string, 0, 3)
	if studentNumber == "" {
		issues = append(issues, IssueMissingStudentNumber)
	}
	if setCode == "" {
		issues = append(issues, IssueMissingSetCode)
		setCode = "A"
	}
	if allBlank(answers) {
		issues = append(issues, IssueEmptyAnswers)
	}

	confidence := ConfidenceClean
	if len(issues) > 0 {
		confidence = ConfidenceFlagged
	}

	return Interpretation{
		Answers:       answers,
		StudentNumber: studentNumber,
		SetCode:       setCode,
		Confidence:    confidence,
		Issues:        issues,
	}, nil
}

func (s *SidecarInterpreter) loadSidecarAnswers(imagePath string) []string {
	jsonPath := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil
	}

	var payload sidecarPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Warn().Err(err).Str("sidecar", jsonPath).Msg("sidecar answers unreadable")
		return nil
	}
	if payload.Answers == nil {
		return nil
	}

	answers := make([]string, len(payload.Answers))
	for i, answer := range payload.Answers {
		answers[i] = strings.ToUpper(strings.TrimSpace(answer))
	}
	return answers
}

// inferFromFilename pulls student number and set code hints from the image
// file stem, which the upload path encodes as student-<n>__set-<c> segments.
func inferFromFilename(imagePath string) (string, string) {
	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))

	student := ""
	setCode := ""
	for _, part := range strings.Split(stem, "__") {
		if value, ok := strings.CutPrefix(part, "student-"); ok {
			student = value
		}
		if value, ok := strings.CutPrefix(part, "set-"); ok {
			setCode = value
		}
	}
	return student, setCode
}

func allBlank(answers []string) bool {
	for _, answer := range answers {
		if answer != "" {
			return false
		}
	}
	return true
}
