package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/coursemate/internal/model"
)

// ExportCourse builds export-ready results for every assignment of a course,
// oldest assignment first.
func (s *Store) ExportCourse(ctx context.Context, courseID int64) (*model.CourseExport, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	llmModel, err := s.GetMetadata(ctx, MetaLLMModel)
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}

	assignments, err := s.ListAssignments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	out := &model.CourseExport{
		CourseID:    course.ID,
		Title:       course.Title,
		Code:        course.Code,
		LLMModel:    llmModel,
		ExportedAt:  time.Now(),
		Assignments: []model.AssignmentExport{},
	}

	users := make(map[int64]*model.User)
	for i := len(assignments) - 1; i >= 0; i-- {
		a := assignments[i]
		subs, err := s.ListSubmissions(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("list submissions of assignment %d: %w", a.ID, err)
		}

		ae := model.AssignmentExport{
			Title:       a.Title,
			Points:      a.Points,
			AIGenerated: a.AIGenerated,
			Questions:   len(a.Questions),
			Submissions: []model.SubmissionExport{},
		}
		for _, sub := range subs {
			u, ok := users[sub.StudentID]
			if !ok {
				u, err = s.GetUserByID(ctx, sub.StudentID)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return nil, fmt.Errorf("get user %d: %w", sub.StudentID, err)
				}
				users[sub.StudentID] = u
			}

			var username, displayName string
			if u != nil {
				username = u.Username
				displayName = u.DisplayName
			}
			ae.Submissions = append(ae.Submissions, model.SubmissionExport{
				Username:    username,
				DisplayName: displayName,
				Score:       sub.Score,
				TimeSpent:   sub.TimeSpent,
				SubmittedAt: sub.SubmittedAt,
				Analysis:    sub.Analysis,
			})
		}
		out.Assignments = append(out.Assignments, ae)
	}
	return out, nil
}
