package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
)

type fixture struct {
	store    *repository.Store
	sessions *repository.MemorySessionStore
	tokens   *security.TokenIssuer
	auth     *AuthService
	users    *UserService
	projects *ProjectService
	tasks    *TaskService
	insights *InsightService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	sessions := repository.NewMemorySessionStore()
	tokens := security.NewTokenIssuer([]byte("test-secret"), time.Hour)
	hasher := security.NewPasswordHasher(4)
	return &fixture{
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		auth:     NewAuthService(store.Users, sessions, tokens, hasher, nil, time.Hour),
		users:    NewUserService(store, sessions, nil),
		projects: NewProjectService(store, nil),
		tasks:    NewTaskService(store, nil),
		insights: NewInsightService(store),
	}
}

func (f *fixture) register(t *testing.T, username string) (model.Principal, string) {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return model.Principal{UserID: resp.User.ID, Role: resp.User.Role}, resp.Token
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}

func assertMessage(t *testing.T, err error, want string) {
	t.Helper()
	var typed *common.Error
	if !errors.As(err, &typed) || typed.Message != want {
		t.Fatalf("expected message %q, got %v", want, err)
	}
}

func TestRegisterValidationAndConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Register(ctx, RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret123"})
	assertKind(t, err, common.ErrValidation)
	if !strings.Contains(err.Error(), "email") {
		t.Fatalf("error should mention email: %v", err)
	}

	_, err = f.auth.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "123"})
	assertKind(t, err, common.ErrValidation)

	f.register(t, "alice")
	_, err = f.auth.Register(ctx, RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "secret123"})
	assertKind(t, err, common.ErrConflict)
	_, err = f.auth.Register(ctx, RegisterRequest{Username: "Alice", Email: "other@example.com", Password: "secret123"})
	assertKind(t, err, common.ErrConflict)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "bob")

	login, err := f.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	if login.ExpiresIn != "1h" || login.User.LastLogin == nil {
		t.Fatalf("unexpected login response %+v", login)
	}
	if _, err := f.auth.Login(ctx, LoginRequest{Username: "bob", Password: "secret123"}); err != nil {
		t.Fatalf("login by username: %v", err)
	}
	_, err = f.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong-pass"})
	assertMessage(t, err, "Invalid credentials")

	v, err := f.auth.Validate(ctx, login.Token)
	if err != nil || !v.Valid || v.UserID != login.User.ID {
		t.Fatalf("Validate = %+v, %v", v, err)
	}

	refreshed, err := f.auth.Refresh(ctx, login.Token)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := f.auth.Validate(ctx, login.Token); v.Valid {
		t.Fatal("refreshed token should be revoked")
	}
	if _, err := f.auth.Refresh(ctx, login.Token); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("refresh with revoked token: %v", err)
	}

	if err := f.auth.Logout(ctx, refreshed.Token); err != nil {
		t.Fatal(err)
	}
	if err := f.auth.Logout(ctx, refreshed.Token); err != nil {
		t.Fatalf("second logout should succeed: %v", err)
	}
	if v, _ := f.auth.Validate(ctx, refreshed.Token); v.Valid {
		t.Fatal("logged out token should be invalid")
	}
	assertKind(t, f.auth.Logout(ctx, ""), common.ErrValidation)
	if v, _ := f.auth.Validate(ctx, "garbage"); v.Valid {
		t.Fatal("garbage token should be invalid")
	}
}

func TestPasswordChangeAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol, token := f.register(t, "carol")

	err := f.auth.ChangePassword(ctx, carol.UserID, ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newsecret"})
	assertMessage(t, err, "Current password is incorrect")
	assertKind(t, err, common.ErrBadRequest)

	if err := f.auth.ChangePassword(ctx, carol.UserID, ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.auth.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "newsecret"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	_, err = f.auth.ForgotPassword(ctx, "nobody@example.com")
	assertKind(t, err, common.ErrNotFound)

	reset, err := f.auth.ForgotPassword(ctx, "Carol@Example.com")
	if err != nil {
		t.Fatal(err)
	}
	if reset.ResetToken == "" || reset.ExpiresIn != "1h" {
		t.Fatalf("unexpected reset response %+v", reset)
	}
	if err := f.auth.ResetPassword(ctx, ResetPasswordRequest{Token: reset.ResetToken, NewPassword: "resetpass"}); err != nil {
		t.Fatal(err)
	}
	err = f.auth.ResetPassword(ctx, ResetPasswordRequest{Token: reset.ResetToken, NewPassword: "another1"})
	assertMessage(t, err, "Invalid or expired reset token")

	if v, _ := f.auth.Validate(ctx, token); v.Valid {
		t.Fatal("reset should revoke existing sessions")
	}
	if _, err := f.auth.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "resetpass"}); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "dave")

	reset, err := f.auth.ForgotPassword(ctx, "dave@example.com")
	if err != nil {
		t.Fatal(err)
	}
	f.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	err = f.auth.ResetPassword(ctx, ResetPasswordRequest{Token: reset.ResetToken, NewPassword: "resetpass"})
	assertMessage(t, err, "Invalid or expired reset token")
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.auth.EnsureAdmin(ctx, "root", "root@example.com", "rootpass"); err != nil {
		t.Fatal(err)
	}
	if err := f.auth.EnsureAdmin(ctx, "root", "root@example.com", "rootpass"); err != nil {
		t.Fatalf("second call should be a no-op: %v", err)
	}
	resp, err := f.auth.Login(ctx, LoginRequest{Username: "root", Password: "rootpass"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.Role != model.RoleAdmin {
		t.Fatalf("role = %q", resp.User.Role)
	}
	if err := f.auth.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatal(err)
	}
}

func TestUserUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	erin, erinToken := f.register(t, "erin")
	frank, _ := f.register(t, "frank")

	_, err := f.users.Update(ctx, frank, erin.UserID, UserUpdate{FirstName: ptr("Mallory")})
	assertKind(t, err, common.ErrForbidden)
	_, err = f.users.Update(ctx, erin, erin.UserID, UserUpdate{Role: ptr(model.RoleAdmin)})
	assertKind(t, err, common.ErrForbidden)
	_, err = f.users.Update(ctx, erin, erin.UserID, UserUpdate{Email: ptr("frank@example.com")})
	assertKind(t, err, common.ErrConflict)

	updated, err := f.users.Update(ctx, erin, erin.UserID, UserUpdate{FirstName: ptr("Erin"), LastName: ptr("Hale")})
	if err != nil || updated.FullName() != "Erin Hale" {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	project, err := f.projects.Create(ctx, frank, CreateProjectRequest{
		Name: "Apollo", Description: "Moon", Members: []MemberRequest{{UserID: erin.UserID}},
	})
	if err != nil {
		t.Fatal(err)
	}
	task, err := f.tasks.Create(ctx, frank, CreateTaskRequest{Title: "Launch", ProjectID: project.ID, AssignedTo: &erin.UserID})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.users.Delete(ctx, erin, erin.UserID); err != nil {
		t.Fatal(err)
	}
	if v, _ := f.auth.Validate(ctx, erinToken); v.Valid {
		t.Fatal("deleted user's token should be invalid")
	}
	p, _ := f.store.Projects.FindByID(ctx, project.ID)
	if _, ok := p.Member(erin.UserID); ok {
		t.Fatal("membership should be removed")
	}
	tk, _ := f.store.Tasks.FindByID(ctx, task.ID)
	if tk.AssignedTo != nil {
		t.Fatal("task should be unassigned")
	}
	_, err = f.users.Get(ctx, erin.UserID)
	assertKind(t, err, common.ErrNotFound)

	stats, err := f.users.Stats(ctx)
	if err != nil || stats.TotalUsers != 1 || stats.RoleDistribution[model.RoleUser] != 1 {
		t.Fatalf("Stats = %+v, %v", stats, err)
	}
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.register(t, "owner")
	outsider, _ := f.register(t, "outsider")
	lead, _ := f.register(t, "lead")

	_, err := f.projects.Create(ctx, owner, CreateProjectRequest{Name: "", Description: ""})
	assertKind(t, err, common.ErrValidation)
	_, err = f.projects.Create(ctx, owner, CreateProjectRequest{Name: "X", Description: "Y", Priority: "extreme"})
	assertKind(t, err, common.ErrValidation)

	p, err := f.projects.Create(ctx, owner, CreateProjectRequest{Name: "Hello World!", Description: "First"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != model.ProjectActive || p.Priority != model.ProjectPriorityMedium || p.Slug != "hello-world" {
		t.Fatalf("unexpected defaults %+v", p)
	}

	_, err = f.projects.Get(ctx, outsider, p.ID)
	assertKind(t, err, common.ErrForbidden)
	_, err = f.projects.Get(ctx, owner, "missing")
	assertKind(t, err, common.ErrNotFound)

	for i := 0; i < 2; i++ {
		p, err = f.projects.AddMember(ctx, owner, p.ID, MemberRequest{UserID: lead.UserID, Role: model.MemberLead})
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(p.Members) != 1 {
		t.Fatalf("member add should be idempotent, got %d members", len(p.Members))
	}
	_, err = f.projects.AddMember(ctx, outsider, p.ID, MemberRequest{UserID: outsider.UserID})
	assertKind(t, err, common.ErrForbidden)

	_, err = f.projects.SetStatus(ctx, lead, p.ID, "bogus")
	assertMessage(t, err, "Invalid status")
	p, err = f.projects.SetStatus(ctx, lead, p.ID, model.ProjectCompleted)
	if err != nil || p.Status != model.ProjectCompleted {
		t.Fatalf("SetStatus = %+v, %v", p, err)
	}

	desc := "Updated"
	p, err = f.projects.Update(ctx, lead, p.ID, UpdateProjectRequest{Description: &desc})
	if err != nil || p.Description != "Updated" || p.Name != "Hello World!" {
		t.Fatalf("partial update = %+v, %v", p, err)
	}

	for i := 0; i < 2; i++ {
		p, err = f.projects.RemoveMember(ctx, owner, p.ID, lead.UserID)
		if err != nil {
			t.Fatalf("remove member #%d: %v", i+1, err)
		}
	}
	if len(p.Members) != 0 {
		t.Fatal("member should be gone")
	}

	if _, err := f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "T", ProjectID: p.ID}); err != nil {
		t.Fatal(err)
	}
	assertKind(t, f.projects.Delete(ctx, outsider, p.ID), common.ErrForbidden)
	if err := f.projects.Delete(ctx, owner, p.ID); err != nil {
		t.Fatal(err)
	}
	tasks, _, _ := f.store.Tasks.List(ctx, model.TaskQuery{ProjectID: p.ID})
	if len(tasks) != 0 {
		t.Fatal("project tasks should be deleted")
	}
}

func TestProjectListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.register(t, "lister")
	other, _ := f.register(t, "another")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []CreateProjectRequest{
		{Name: "Bravo", Description: "alpha site", Priority: model.ProjectPriorityHigh},
		{Name: "alpha", Description: "second", Priority: model.ProjectPriorityLow, Status: model.ProjectCompleted},
		{Name: "Charlie", Description: "third", Priority: model.ProjectPriorityHigh},
	}
	for i, req := range seed {
		f.projects.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		if _, err := f.projects.Create(ctx, owner, req); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.projects.Create(ctx, other, CreateProjectRequest{Name: "Hidden", Description: "not mine"}); err != nil {
		t.Fatal(err)
	}

	all, page, err := f.projects.List(ctx, owner, model.ProjectQuery{})
	if err != nil || len(all) != 3 || page.Total != 3 {
		t.Fatalf("List = %d, %+v, %v", len(all), page, err)
	}
	if all[0].Name != "Charlie" {
		t.Fatalf("default order should be newest first, got %s", all[0].Name)
	}

	byName, _, _ := f.projects.List(ctx, owner, model.ProjectQuery{SortField: "name", SortOrder: "asc"})
	if names := []string{byName[0].Name, byName[1].Name, byName[2].Name}; names[0] != "Bravo" || names[2] != "alpha" {
		t.Fatalf("name sort should be byte-wise: %v", names)
	}

	byPriority, _, _ := f.projects.List(ctx, owner, model.ProjectQuery{SortField: "priority", SortOrder: "desc"})
	if byPriority[0].Name != "Bravo" || byPriority[1].Name != "Charlie" {
		t.Fatalf("priority desc should keep ties in insertion order: %s, %s", byPriority[0].Name, byPriority[1].Name)
	}

	high, _, _ := f.projects.List(ctx, owner, model.ProjectQuery{Priority: model.ProjectPriorityHigh})
	for _, p := range high {
		if p.Priority != model.ProjectPriorityHigh {
			t.Fatalf("filter leaked %s", p.Name)
		}
	}

	found, _, _ := f.projects.List(ctx, owner, model.ProjectQuery{Search: "ALPHA"})
	if len(found) != 2 {
		t.Fatalf("search should match name and description, got %d", len(found))
	}

	_, _, err = f.projects.List(ctx, owner, model.ProjectQuery{SortField: "color"})
	assertKind(t, err, common.ErrValidation)
	_, _, err = f.projects.List(ctx, owner, model.ProjectQuery{SortOrder: "sideways"})
	assertKind(t, err, common.ErrValidation)

	admin := model.Principal{UserID: "admin", Role: model.RoleAdmin}
	everything, _, _ := f.projects.List(ctx, admin, model.ProjectQuery{})
	if len(everything) != 4 {
		t.Fatalf("admin should see all projects, got %d", len(everything))
	}
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.register(t, "taskowner")
	dev, _ := f.register(t, "developer")

	p, err := f.projects.Create(ctx, owner, CreateProjectRequest{Name: "Tasks", Description: "d"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "T", ProjectID: "missing"})
	assertMessage(t, err, "Project not found")
	_, err = f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "T", Project: p.ID, AssignedTo: ptr("ghost")})
	assertMessage(t, err, "Invalid user")

	task, err := f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "Write", Project: p.ID})
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != model.TaskPending || task.Type != model.TaskFeature || task.AssignedTo != nil {
		t.Fatalf("unexpected defaults %+v", task)
	}
	other, err := f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "Review", ProjectID: p.ID})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.tasks.Get(ctx, dev, task.ID)
	assertKind(t, err, common.ErrForbidden)

	_, err = f.tasks.Assign(ctx, owner, task.ID, "ghost")
	assertMessage(t, err, "Invalid user")
	task, err = f.tasks.Assign(ctx, owner, task.ID, dev.UserID)
	if err != nil || !task.IsAssignedTo(dev.UserID) {
		t.Fatalf("Assign = %+v, %v", task, err)
	}
	if _, err := f.tasks.Get(ctx, dev, task.ID); err != nil {
		t.Fatalf("assignee should see the task: %v", err)
	}

	_, err = f.tasks.SetStatus(ctx, dev, task.ID, "done-ish")
	assertMessage(t, err, "Invalid status")
	task, err = f.tasks.SetStatus(ctx, dev, task.ID, model.TaskCompleted)
	if err != nil || task.CompletedAt == nil {
		t.Fatalf("SetStatus = %+v, %v", task, err)
	}
	proj, _ := f.store.Projects.FindByID(ctx, p.ID)
	if proj.Progress != 50 {
		t.Fatalf("progress = %d, want 50", proj.Progress)
	}

	task, err = f.tasks.SetStatus(ctx, dev, task.ID, model.TaskInProgress)
	if err != nil || task.CompletedAt != nil {
		t.Fatalf("reopening should clear completedAt: %+v, %v", task, err)
	}

	task, err = f.tasks.AddComment(ctx, dev, task.ID, "Looks good")
	if err != nil || len(task.Comments) != 1 || task.Comments[0].Author != dev.UserID {
		t.Fatalf("AddComment = %+v, %v", task, err)
	}
	_, err = f.tasks.AddComment(ctx, dev, task.ID, "   ")
	assertKind(t, err, common.ErrValidation)

	task, err = f.tasks.AddSubtask(ctx, dev, task.ID, "Outline")
	if err != nil || len(task.Subtasks) != 1 {
		t.Fatalf("AddSubtask = %+v, %v", task, err)
	}
	task, err = f.tasks.ToggleSubtask(ctx, dev, task.ID, task.Subtasks[0].ID)
	if err != nil || !task.Subtasks[0].Completed {
		t.Fatalf("ToggleSubtask = %+v, %v", task, err)
	}
	_, err = f.tasks.ToggleSubtask(ctx, dev, task.ID, "missing")
	assertKind(t, err, common.ErrNotFound)

	mine, _, err := f.tasks.MyTasks(ctx, dev, model.TaskQuery{})
	if err != nil || len(mine) != 1 || mine[0].ID != task.ID {
		t.Fatalf("MyTasks = %d, %v", len(mine), err)
	}
	reported, _, _ := f.tasks.List(ctx, owner, model.TaskQuery{})
	if len(reported) != 2 {
		t.Fatalf("reporter should see both tasks, got %d", len(reported))
	}

	task, err = f.tasks.Unassign(ctx, owner, task.ID)
	if err != nil || task.AssignedTo != nil {
		t.Fatalf("Unassign = %+v, %v", task, err)
	}

	assertKind(t, f.tasks.Delete(ctx, dev, other.ID), common.ErrForbidden)
	if err := f.tasks.Delete(ctx, owner, other.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.tasks.Get(ctx, owner, other.ID)
	assertKind(t, err, common.ErrNotFound)
}

func TestInsights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, _ := f.register(t, "analyst")

	p, err := f.projects.Create(ctx, owner, CreateProjectRequest{Name: "Metrics", Description: "dashboards"})
	if err != nil {
		t.Fatal(err)
	}
	done, err := f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "Chart", ProjectID: p.ID, AssignedTo: &owner.UserID, Priority: model.TaskPriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.SetStatus(ctx, owner, done.ID, model.TaskCompleted); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.Create(ctx, owner, CreateTaskRequest{Title: "Metrics export", ProjectID: p.ID}); err != nil {
		t.Fatal(err)
	}

	stats, err := f.insights.Stats(ctx, owner, "", "week")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TaskStatistics.Total != 2 || stats.TaskStatistics.Completed != 1 || stats.TaskStatistics.CompletionRate != 50 {
		t.Fatalf("task stats = %+v", stats.TaskStatistics)
	}
	if stats.ProjectStatistics.Total != 1 || stats.ProjectStatistics.AverageProgress != 50 {
		t.Fatalf("project stats = %+v", stats.ProjectStatistics)
	}
	if len(stats.WorkloadStatistics) != 1 || stats.WorkloadStatistics[0].Username != "analyst" {
		t.Fatalf("workload = %+v", stats.WorkloadStatistics)
	}
	_, err = f.insights.Stats(ctx, owner, "", "decade")
	assertKind(t, err, common.ErrValidation)

	res, err := f.insights.Search(ctx, owner, "metrics", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != SearchAll || len(res.Results.Projects) != 1 || len(res.Results.Tasks) != 1 {
		t.Fatalf("Search = %+v", res.Results)
	}
	_, err = f.insights.Search(ctx, owner, "", "tasks")
	assertKind(t, err, common.ErrValidation)
	_, err = f.insights.Search(ctx, owner, "x", "widgets")
	assertKind(t, err, common.ErrValidation)

	perf, err := f.insights.Performance(ctx, owner, "")
	if err != nil {
		t.Fatal(err)
	}
	if perf.TimeRange != RangeMonth || len(perf.CompletionTrends) != 1 || perf.CompletionTrends[0].Completed != 1 {
		t.Fatalf("Performance = %+v", perf)
	}
	if len(perf.TeamProductivity) != 1 || perf.TeamProductivity[0].CompletionRate != 100 {
		t.Fatalf("productivity = %+v", perf.TeamProductivity)
	}
}

func TestFormatTTL(t *testing.T) {
	cases := map[time.Duration]string{
		24 * time.Hour:          "24h",
		90 * time.Minute:        "90m",
		1500 * time.Millisecond: "1.5s",
	}
	for in, want := range cases {
		if got := formatTTL(in); got != want {
			t.Errorf("formatTTL(%v) = %q, want %q", in, got, want)
		}
	}
}
