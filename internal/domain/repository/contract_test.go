package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

// Contract tests run against every Store implementation.

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(offset time.Duration) model.Timestamp {
	return model.NewTimestamp(baseTime.Add(offset))
}

func seedUser(t *testing.T, s *Store, id, username, email string) *model.User {
	t.Helper()
	u := &model.User{
		ID: id, Username: username, Email: email, HashedPassword: "x", Role: model.RoleUser,
		CreatedAt: at(0), UpdatedAt: at(0),
	}
	if err := s.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func seedProject(t *testing.T, s *Store, id, name, desc string, status model.ProjectStatus, prio model.ProjectPriority, created time.Duration) {
	t.Helper()
	p := &model.Project{
		ID: id, Name: name, Slug: id, Description: desc, Status: status, Priority: prio, Owner: "owner",
		Members: []model.Member{}, Tags: []string{"go"}, CreatedAt: at(created), UpdatedAt: at(created),
	}
	if err := s.Projects.Create(context.Background(), p); err != nil {
		t.Fatalf("create project %s: %v", id, err)
	}
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func projectID(p model.Project) string { return p.ID }
func taskID(t model.Task) string       { return t.ID }

func runUserContract(t *testing.T, s *Store) {
	ctx := context.Background()
	seedUser(t, s, "u1", "alice", "alice@example.com")
	seedUser(t, s, "u2", "bob", "bob@example.com")

	dup := &model.User{ID: "u3", Username: "carol", Email: "alice@example.com", Role: model.RoleUser, CreatedAt: at(0), UpdatedAt: at(0)}
	if err := s.Users.Create(ctx, dup); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("duplicate email: expected conflict, got %v", err)
	}

	got, err := s.Users.FindByUsername(ctx, "ALICE")
	if err != nil || got.ID != "u1" {
		t.Fatalf("FindByUsername: %v %v", got, err)
	}
	if _, err := s.Users.FindByID(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	exp := baseTime.Add(time.Hour)
	got.ResetTokenHash = "digest"
	got.ResetTokenExpires = &exp
	got.FirstName = "Alice"
	if err := s.Users.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	byToken, err := s.Users.FindByResetToken(ctx, "digest")
	if err != nil || byToken.FirstName != "Alice" || byToken.ResetTokenExpires == nil {
		t.Fatalf("FindByResetToken: %+v %v", byToken, err)
	}

	users, total, err := s.Users.List(ctx, model.UserQuery{Search: "bo"})
	if err != nil || total != 1 || users[0].ID != "u2" {
		t.Fatalf("List search: %v %d %v", users, total, err)
	}
	counts, err := s.Users.CountByRole(ctx)
	if err != nil || counts[model.RoleUser] != 2 {
		t.Fatalf("CountByRole: %v %v", counts, err)
	}

	if err := s.Users.Delete(ctx, "u2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Users.Delete(ctx, "u2"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func runProjectContract(t *testing.T, s *Store) {
	ctx := context.Background()
	seedProject(t, s, "p1", "Beta", "Second project", model.ProjectActive, model.ProjectPriorityHigh, 0)
	seedProject(t, s, "p2", "alpha", "Mobile APP rewrite", model.ProjectCompleted, model.ProjectPriorityLow, time.Minute)
	seedProject(t, s, "p3", "Alpha", "Website", model.ProjectActive, model.ProjectPriorityHigh, time.Minute)
	seedProject(t, s, "p4", "Gamma", "50% done_ok", model.ProjectOnHold, model.ProjectPriorityCritical, 2*time.Minute)

	list := func(q model.ProjectQuery) []string {
		t.Helper()
		projects, _, err := s.Projects.List(ctx, q)
		if err != nil {
			t.Fatalf("List %+v: %v", q, err)
		}
		return ids(projects, projectID)
	}

	if got := list(model.ProjectQuery{Status: model.ProjectActive, SortOrder: model.SortAsc}); !equalIDs(got, []string{"p1", "p3"}) {
		t.Errorf("filter status: %v", got)
	}
	if got := list(model.ProjectQuery{Priority: model.ProjectPriorityHigh, SortOrder: model.SortAsc}); !equalIDs(got, []string{"p1", "p3"}) {
		t.Errorf("filter priority: %v", got)
	}
	// Byte order: upper case before lower case.
	if got := list(model.ProjectQuery{SortField: model.ProjectSortName, SortOrder: model.SortAsc}); !equalIDs(got, []string{"p3", "p1", "p4", "p2"}) {
		t.Errorf("sort name asc: %v", got)
	}
	// p2 and p3 share createdAt and keep insertion order both ways.
	if got := list(model.ProjectQuery{SortField: model.ProjectSortCreatedAt, SortOrder: model.SortAsc}); !equalIDs(got, []string{"p1", "p2", "p3", "p4"}) {
		t.Errorf("sort date asc: %v", got)
	}
	if got := list(model.ProjectQuery{SortField: model.ProjectSortCreatedAt, SortOrder: model.SortDesc}); !equalIDs(got, []string{"p4", "p2", "p3", "p1"}) {
		t.Errorf("sort date desc: %v", got)
	}
	if got := list(model.ProjectQuery{SortField: model.ProjectSortPriority, SortOrder: model.SortDesc}); !equalIDs(got, []string{"p4", "p1", "p3", "p2"}) {
		t.Errorf("sort priority desc: %v", got)
	}
	if got := list(model.ProjectQuery{Search: "app", SortOrder: model.SortAsc}); !equalIDs(got, []string{"p2"}) {
		t.Errorf("search: %v", got)
	}
	if got := list(model.ProjectQuery{Search: "50%", SortOrder: model.SortAsc}); !equalIDs(got, []string{"p4"}) {
		t.Errorf("search with wildcard characters: %v", got)
	}
	if got := list(model.ProjectQuery{Search: "_ok", SortOrder: model.SortAsc}); !equalIDs(got, []string{"p4"}) {
		t.Errorf("search underscore: %v", got)
	}

	page, total, err := s.Projects.List(ctx, model.ProjectQuery{SortOrder: model.SortAsc, Page: 2, Limit: 3})
	if err != nil || total != 4 || !equalIDs(ids(page, projectID), []string{"p4"}) {
		t.Errorf("pagination: %v %d %v", ids(page, projectID), total, err)
	}

	member := model.Member{UserID: "m1", Role: model.MemberDeveloper, JoinedAt: at(time.Hour)}
	p, err := s.Projects.AddMember(ctx, "p1", member)
	if err != nil || len(p.Members) != 1 {
		t.Fatalf("AddMember: %v %v", p, err)
	}
	p, err = s.Projects.AddMember(ctx, "p1", model.Member{UserID: "m1", Role: model.MemberLead, JoinedAt: at(2 * time.Hour)})
	if err != nil || len(p.Members) != 1 || p.Members[0].Role != model.MemberDeveloper {
		t.Fatalf("AddMember twice should be a no-op: %+v %v", p, err)
	}
	if got := list(model.ProjectQuery{MemberID: "m1"}); !equalIDs(got, []string{"p1"}) {
		t.Errorf("member scope: %v", got)
	}

	p.Name = "Beta 2"
	p.Members = nil
	if err := s.Projects.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	reloaded, err := s.Projects.FindByID(ctx, "p1")
	if err != nil || reloaded.Name != "Beta 2" || len(reloaded.Members) != 1 {
		t.Fatalf("Update must keep members: %+v %v", reloaded, err)
	}

	for i := 0; i < 2; i++ {
		p, err = s.Projects.RemoveMember(ctx, "p1", "m1")
		if err != nil || len(p.Members) != 0 {
			t.Fatalf("RemoveMember #%d: %+v %v", i, p, err)
		}
	}
	if _, err := s.Projects.AddMember(ctx, "missing", member); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("AddMember on missing project: %v", err)
	}

	if err := s.Projects.SetProgress(ctx, "p1", 50); err != nil {
		t.Fatal(err)
	}
	if reloaded, _ := s.Projects.FindByID(ctx, "p1"); reloaded.Progress != 50 {
		t.Fatalf("progress = %d", reloaded.Progress)
	}

	if err := s.Projects.Delete(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Projects.FindByID(ctx, "p1"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("deleted project still found: %v", err)
	}
}

func runTaskContract(t *testing.T, s *Store) {
	ctx := context.Background()
	seedProject(t, s, "tp", "Tasks", "Holder", model.ProjectActive, model.ProjectPriorityMedium, 0)

	assignee := "u9"
	tasks := []*model.Task{
		{ID: "t1", Title: "Write docs", Status: model.TaskPending, Priority: model.TaskPriorityLow, Reporter: "r1"},
		{ID: "t2", Title: "Fix bug", Status: model.TaskCompleted, Priority: model.TaskPriorityUrgent, Reporter: "r2", AssignedTo: &assignee},
		{ID: "t3", Title: "fix login", Description: "OAuth", Status: model.TaskPending, Priority: model.TaskPriorityHigh, Reporter: "r2"},
	}
	for i, task := range tasks {
		task.ProjectID = "tp"
		task.Type = model.TaskFeature
		task.CreatedAt = at(time.Duration(i) * time.Minute)
		task.UpdatedAt = task.CreatedAt
		if err := s.Tasks.Create(ctx, task); err != nil {
			t.Fatalf("create %s: %v", task.ID, err)
		}
	}

	list := func(q model.TaskQuery) []string {
		t.Helper()
		got, _, err := s.Tasks.List(ctx, q)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		return ids(got, taskID)
	}

	if got := list(model.TaskQuery{Status: model.TaskPending, SortOrder: model.SortAsc}); !equalIDs(got, []string{"t1", "t3"}) {
		t.Errorf("status filter: %v", got)
	}
	if got := list(model.TaskQuery{InvolvedUser: "u9"}); !equalIDs(got, []string{"t2"}) {
		t.Errorf("involved assignee: %v", got)
	}
	if got := list(model.TaskQuery{InvolvedUser: "r2", SortOrder: model.SortAsc}); !equalIDs(got, []string{"t2", "t3"}) {
		t.Errorf("involved reporter: %v", got)
	}
	if got := list(model.TaskQuery{Search: "FIX", SortField: model.TaskSortTitle, SortOrder: model.SortAsc}); !equalIDs(got, []string{"t2", "t3"}) {
		t.Errorf("search sorted by title: %v", got)
	}
	if got := list(model.TaskQuery{SortField: model.TaskSortPriority, SortOrder: model.SortDesc}); !equalIDs(got, []string{"t2", "t3", "t1"}) {
		t.Errorf("priority desc: %v", got)
	}

	task, err := s.Tasks.AddComment(ctx, "t1", model.Comment{ID: "c1", Text: "first", Author: "r1", CreatedAt: at(time.Hour)})
	if err != nil || len(task.Comments) != 1 {
		t.Fatalf("AddComment: %+v %v", task, err)
	}
	task, err = s.Tasks.AddComment(ctx, "t1", model.Comment{ID: "c2", Text: "second", Author: "r1", CreatedAt: at(time.Hour)})
	if err != nil || len(task.Comments) != 2 || task.Comments[1].Text != "second" {
		t.Fatalf("comment order: %+v %v", task.Comments, err)
	}

	task, err = s.Tasks.AddSubtask(ctx, "t1", model.Subtask{ID: "s1", Title: "outline", CreatedAt: at(time.Hour)})
	if err != nil || len(task.Subtasks) != 1 {
		t.Fatalf("AddSubtask: %v", err)
	}
	task, err = s.Tasks.ToggleSubtask(ctx, "t1", "s1")
	if err != nil || !task.Subtasks[0].Completed {
		t.Fatalf("ToggleSubtask: %+v %v", task.Subtasks, err)
	}
	if _, err := s.Tasks.ToggleSubtask(ctx, "t1", "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("toggle unknown subtask: %v", err)
	}

	task.Title = "Write better docs"
	task.Comments = nil
	if err := s.Tasks.Update(ctx, task); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.Tasks.FindByID(ctx, "t1")
	if err != nil || reloaded.Title != "Write better docs" || len(reloaded.Comments) != 2 {
		t.Fatalf("Update must keep comments: %+v %v", reloaded, err)
	}

	if err := s.Tasks.UnassignUser(ctx, "u9"); err != nil {
		t.Fatal(err)
	}
	if got := list(model.TaskQuery{AssignedTo: "u9"}); len(got) != 0 {
		t.Errorf("unassign: %v", got)
	}

	if err := s.Tasks.DeleteByProject(ctx, "tp"); err != nil {
		t.Fatal(err)
	}
	if got := list(model.TaskQuery{}); len(got) != 0 {
		t.Errorf("DeleteByProject left %v", got)
	}
}
