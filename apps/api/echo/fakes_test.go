package echoapi

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/hoopdesk/hoopdesk/core/attendance"
	"github.com/hoopdesk/hoopdesk/core/chat"
	"github.com/hoopdesk/hoopdesk/core/grading"
	"github.com/hoopdesk/hoopdesk/core/health"
	"github.com/hoopdesk/hoopdesk/core/membership"
	"github.com/hoopdesk/hoopdesk/core/notify"
	"github.com/hoopdesk/hoopdesk/core/team"
	"github.com/hoopdesk/hoopdesk/core/telemetry"
	"github.com/hoopdesk/hoopdesk/core/user"
	"github.com/hoopdesk/hoopdesk/core/video"
)

type fakes struct {
	users       *fakeUsers
	memberships *fakeMemberships
	attendance  *fakeAttendance
	grading     *fakeGrading
	chat        *fakeChat
	team        *fakeTeam
	health      *fakeHealth
	telemetry   *fakeTelemetry
	video       *fakeVideo
	notify      *fakeNotify
}

func newFakes() *fakes {
	return &fakes{
		users: &fakeUsers{auth: map[string]user.AuthData{
			adminID:   approved(adminID, user.RoleAdmin),
			coachID:   approved(coachID, user.RoleCoach),
			playerUID: approved(playerUID, user.RolePlayer),
			parentID:  approved(parentID, user.RoleParent),
			pendingID: {UserID: pendingID, ApprovalStatus: user.StatusPending},
			rejectID:  {UserID: rejectID, ApprovalStatus: user.StatusRejected, Roles: []user.RoleAssignment{{Role: user.RoleAdmin, IsActive: true}}},
		}},
		memberships: &fakeMemberships{},
		attendance:  &fakeAttendance{},
		grading:     &fakeGrading{},
		chat:        &fakeChat{},
		team:        &fakeTeam{},
		health:      &fakeHealth{},
		telemetry:   &fakeTelemetry{},
		video:       &fakeVideo{},
		notify:      &fakeNotify{},
	}
}

func approved(id string, roles ...user.Role) user.AuthData {
	auth := user.AuthData{UserID: id, ApprovalStatus: user.StatusApproved}
	for _, r := range roles {
		auth.Roles = append(auth.Roles, user.RoleAssignment{Role: r, IsActive: true})
	}
	return auth
}

// users

type fakeUsers struct {
	auth    map[string]user.AuthData
	approve func(ctx context.Context, targetID string, d user.Decision) (user.Profile, error)
	update  func(ctx context.Context, id string, up user.UpdateProfile) (user.Profile, error)
	filter  func(ctx context.Context, f user.QueryFilter) ([]user.Profile, error)
}

func (f *fakeUsers) Authorize(_ context.Context, userID string, required ...user.Role) (user.Access, user.AuthData, error) {
	auth := f.auth[userID]
	return user.Authorize(auth, required...), auth, nil
}

func (f *fakeUsers) Approve(ctx context.Context, targetID string, d user.Decision) (user.Profile, error) {
	if f.approve == nil {
		return user.Profile{ID: targetID}, nil
	}
	return f.approve(ctx, targetID, d)
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (user.Profile, error) {
	auth := f.auth[id]
	return user.Profile{ID: id, Email: id + "@test.io", ApprovalStatus: auth.ApprovalStatus}, nil
}

func (f *fakeUsers) Filter(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	if f.filter == nil {
		return nil, nil
	}
	return f.filter(ctx, filter)
}

func (f *fakeUsers) Update(ctx context.Context, id string, up user.UpdateProfile) (user.Profile, error) {
	if f.update == nil {
		return user.Profile{ID: id}, nil
	}
	return f.update(ctx, id, up)
}

// memberships

type fakeMemberships struct {
	mu          sync.Mutex
	invalidated []string

	assign  func(ctx context.Context, am membership.AssignMembership) (membership.Membership, error)
	summary func(ctx context.Context, userID string) (membership.Summary, error)
	sweep   func(ctx context.Context, today time.Time) (membership.SweepResult, error)
}

func (f *fakeMemberships) Assign(ctx context.Context, am membership.AssignMembership) (membership.Membership, error) {
	if f.assign == nil {
		return membership.Membership{}, nil
	}
	return f.assign(ctx, am)
}

func (f *fakeMemberships) AssignForPlayer(ctx context.Context, _ string, am membership.AssignMembership) (membership.Membership, error) {
	return f.Assign(ctx, am)
}

func (f *fakeMemberships) Summary(ctx context.Context, userID string) (membership.Summary, error) {
	if f.summary == nil {
		return membership.Summary{UserID: userID}, nil
	}
	return f.summary(ctx, userID)
}

func (f *fakeMemberships) InvalidateSummary(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeMemberships) invalidatedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func (f *fakeMemberships) ForUser(context.Context, string) ([]membership.Membership, error) {
	return nil, nil
}

func (f *fakeMemberships) Types(context.Context) ([]membership.Type, error) {
	return nil, nil
}

func (f *fakeMemberships) Sweep(ctx context.Context, today time.Time) (membership.SweepResult, error) {
	if f.sweep == nil {
		return membership.SweepResult{}, nil
	}
	return f.sweep(ctx, today)
}

// attendance

type fakeAttendance struct {
	saveBatch func(ctx context.Context, records []attendance.RecordInput) (attendance.BatchResult, error)
	forEvent  func(ctx context.Context, eventID string) ([]attendance.Record, error)
	export    func(ctx context.Context, teamID string, from, to time.Time) (*bytes.Buffer, error)
}

func (f *fakeAttendance) SaveBatch(ctx context.Context, records []attendance.RecordInput) (attendance.BatchResult, error) {
	if f.saveBatch == nil {
		return attendance.BatchResult{Saved: len(records)}, nil
	}
	return f.saveBatch(ctx, records)
}

func (f *fakeAttendance) ForEvent(ctx context.Context, eventID string) ([]attendance.Record, error) {
	if f.forEvent == nil {
		return nil, nil
	}
	return f.forEvent(ctx, eventID)
}

func (f *fakeAttendance) ForPlayer(context.Context, string, time.Time, time.Time) ([]attendance.Record, error) {
	return nil, nil
}

func (f *fakeAttendance) Export(ctx context.Context, teamID string, from, to time.Time) (*bytes.Buffer, error) {
	if f.export == nil {
		return new(bytes.Buffer), nil
	}
	return f.export(ctx, teamID, from, to)
}

// grading

type fakeGrading struct {
	save func(ctx context.Context, sg grading.SaveGrades) (grading.Grade, error)
}

func (f *fakeGrading) Metrics(context.Context) ([]grading.Metric, error) {
	return nil, nil
}

func (f *fakeGrading) Save(ctx context.Context, sg grading.SaveGrades) (grading.Grade, error) {
	if f.save == nil {
		return grading.Grade{}, nil
	}
	return f.save(ctx, sg)
}

func (f *fakeGrading) ForEvent(context.Context, string) ([]grading.Grade, error) {
	return nil, nil
}

func (f *fakeGrading) ForPlayer(context.Context, string) ([]grading.Grade, error) {
	return nil, nil
}

// chat

type fakeChat struct {
	messages func(ctx context.Context, userID, chatID string, mf chat.MessageFilter) ([]chat.Message, error)
	edit     func(ctx context.Context, userID, messageID string, body chat.MessageBody) (*chat.Message, error)
	archived map[string]bool
}

func (f *fakeChat) List(context.Context, string, bool) ([]chat.Chat, error) {
	return nil, nil
}

func (f *fakeChat) Get(_ context.Context, _, chatID string) (*chat.Chat, error) {
	return &chat.Chat{ID: chatID}, nil
}

func (f *fakeChat) Create(_ context.Context, creatorID string, nc chat.NewChat) (*chat.Chat, error) {
	return &chat.Chat{ID: chatID, CreatedBy: creatorID, Participants: nc.Participants}, nil
}

func (f *fakeChat) SetArchived(_ context.Context, _, chatID string, archived bool) error {
	if f.archived == nil {
		f.archived = make(map[string]bool)
	}
	f.archived[chatID] = archived
	return nil
}

func (f *fakeChat) Messages(ctx context.Context, userID, chatID string, mf chat.MessageFilter) ([]chat.Message, error) {
	if f.messages == nil {
		return nil, nil
	}
	return f.messages(ctx, userID, chatID, mf)
}

func (f *fakeChat) Send(_ context.Context, senderID, chatID string, body chat.MessageBody) (*chat.Message, error) {
	return &chat.Message{ChatID: chatID, SenderID: senderID, Content: body.Content, Status: chat.StatusSent}, nil
}

func (f *fakeChat) Edit(ctx context.Context, userID, messageID string, body chat.MessageBody) (*chat.Message, error) {
	if f.edit == nil {
		return &chat.Message{ID: messageID, SenderID: userID, Content: body.Content, Status: chat.StatusEdited}, nil
	}
	return f.edit(ctx, userID, messageID, body)
}

func (f *fakeChat) Recall(_ context.Context, userID, messageID string) (*chat.Message, error) {
	return &chat.Message{ID: messageID, SenderID: userID, Status: chat.StatusRecalled}, nil
}

// team

type fakeTeam struct {
	schedules func(ctx context.Context, teamID string, from, to time.Time) ([]team.Schedule, error)
	create    func(ctx context.Context, createdBy string, ns team.NewSchedule) (*team.Schedule, error)
}

func (f *fakeTeam) Teams(context.Context) ([]team.Team, error) {
	return nil, nil
}

func (f *fakeTeam) Team(_ context.Context, teamID string) (*team.Team, error) {
	return &team.Team{ID: teamID}, nil
}

func (f *fakeTeam) CreateTeam(_ context.Context, nt team.NewTeam) (*team.Team, error) {
	return &team.Team{ID: teamID, Name: nt.Name}, nil
}

func (f *fakeTeam) Players(context.Context, string) ([]team.Player, error) {
	return nil, nil
}

// Player knows one player, linked to the playerUID account.
func (f *fakeTeam) Player(_ context.Context, id string) (*team.Player, error) {
	if id != playerID {
		return nil, team.ErrNotFound
	}
	return &team.Player{ID: id, UserID: null.StringFrom(playerUID), FullName: "Awe"}, nil
}

func (f *fakeTeam) Schedules(ctx context.Context, teamID string, from, to time.Time) ([]team.Schedule, error) {
	if f.schedules == nil {
		return nil, nil
	}
	return f.schedules(ctx, teamID, from, to)
}

func (f *fakeTeam) CreateSchedule(ctx context.Context, createdBy string, ns team.NewSchedule) (*team.Schedule, error) {
	if f.create == nil {
		return &team.Schedule{TeamID: ns.TeamID, Title: ns.Title, CreatedBy: createdBy}, nil
	}
	return f.create(ctx, createdBy, ns)
}

func (f *fakeTeam) DeleteSchedule(context.Context, string) error {
	return nil
}

// health

type fakeHealth struct{}

func (fakeHealth) Submit(_ context.Context, sc health.SubmitCheckin) (*health.Checkin, error) {
	return &health.Checkin{PlayerID: sc.PlayerID}, nil
}

func (fakeHealth) ForPlayer(context.Context, string, time.Time, time.Time) ([]health.Checkin, error) {
	return nil, nil
}

func (fakeHealth) Dashboard(context.Context) (health.Dashboard, error) {
	return health.Dashboard{}, nil
}

// telemetry

type fakeTelemetry struct {
	mu      sync.Mutex
	reports []telemetry.Report
	report  func(ctx context.Context, r telemetry.Report) error
}

func (f *fakeTelemetry) Track(_ context.Context, userID string, te telemetry.TrackEvent) (*telemetry.Event, error) {
	e := &telemetry.Event{Name: te.Name}
	e.UserID.SetValid(userID)
	return e, nil
}

func (f *fakeTelemetry) Report(ctx context.Context, r telemetry.Report) error {
	f.mu.Lock()
	f.reports = append(f.reports, r)
	f.mu.Unlock()
	if f.report == nil {
		return nil
	}
	return f.report(ctx, r)
}

// video

type fakeVideo struct{}

func (fakeVideo) AnalyzeShot(context.Context, video.Request) (video.ShotAnalysis, error) {
	return video.ShotAnalysis{}, nil
}

func (fakeVideo) AnalyzeTechnique(context.Context, video.Request) (video.TechniqueAnalysis, error) {
	return video.TechniqueAnalysis{}, nil
}

// notifications

type fakeNotify struct{}

func (fakeNotify) Preferences(_ context.Context, userID string) (notify.Preferences, error) {
	return notify.DefaultPreferences(userID), nil
}

func (fakeNotify) UpdatePreferences(_ context.Context, userID string, up notify.UpdatePreferences) (notify.Preferences, error) {
	return up.Apply(notify.DefaultPreferences(userID)), nil
}
