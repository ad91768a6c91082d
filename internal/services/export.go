package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/seiyelan/raidhelper/internal/question"
)

// ExportCSV renders the activity's active roster as CSV, one row per signup
// in signup order. Columns follow the group's questionnaire so the sheet and
// the export stay in step; answers are the pretty renderings.
func (s *SignupService) ExportCSV(ctx context.Context, activityID string) ([]byte, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	sheet, err := s.sheet(activity.GroupName)
	if err != nil {
		return nil, fmt.Errorf("signup service: build sheet: %w", err)
	}
	signups, err := s.ListActive(ctx, activity.ID)
	if err != nil {
		return nil, err
	}

	header := make([]string, 0, len(sheet)+1)
	header = append(header, "User ID")
	for _, q := range sheet {
		header = append(header, q.Name)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("signup service: write header: %w", err)
	}

	for _, signup := range signups {
		answers := question.NewAnswerSet()
		if err := json.Unmarshal(signup.Content, answers); err != nil {
			return nil, fmt.Errorf("signup service: decode answers for %s: %w", signup.ID, err)
		}
		row := make([]string, 0, len(header))
		row = append(row, signup.UserID)
		for _, q := range sheet {
			row = append(row, answers.Pretty(q.Label))
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("signup service: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("signup service: flush: %w", err)
	}
	return buf.Bytes(), nil
}
