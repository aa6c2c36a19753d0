// Package duetoday orchestrates the task, timer, and badge operations
// shared by the daemon, the popup, and the one-shot CLI commands.
package duetoday

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/duetoday/internal/core/clickup"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/task"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/pkg/executil"
)

// Snooze day offsets offered everywhere a snooze is surfaced.
var SnoozeDays = []int{1, 2, 7}

var (
	// ErrNoCredential is returned when an operation needs the tracker
	// but no API token is stored.
	ErrNoCredential = errors.New("no credential configured; run 'duetoday init'")
	// ErrFeatureDisabled is returned when an operation is gated behind
	// a feature flag that is off.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrInvalidSnooze is returned for snooze offsets outside SnoozeDays.
	ErrInvalidSnooze = errors.New("snooze must be 1, 2, or 7 days")
)

// API is the tracker surface the service consumes. *clickup.Client
// satisfies it; tests substitute fakes.
type API interface {
	AuthorizedUser(ctx context.Context) (clickup.User, error)
	Teams(ctx context.Context) ([]clickup.Team, error)
	Spaces(ctx context.Context, teamID string) ([]clickup.Space, error)
	TasksDue(ctx context.Context, query clickup.TaskQuery) ([]task.Task, error)
	CompleteTask(ctx context.Context, taskID string) error
	RescheduleTask(ctx context.Context, taskID string, due time.Time) error
	CreateTimeEntry(ctx context.Context, taskID string, entry clickup.TimeEntry) error
	TaskURL(taskID string) string
}

// APIFactory builds an API client from the currently stored credential.
// It is called per operation so a credential change never requires a
// daemon restart. Factories return ErrNoCredential when no token is set.
type APIFactory func(ctx context.Context) (API, error)

// identity is the cached authorized user plus their workspaces.
type identity struct {
	user  clickup.User
	teams []clickup.Team
}

// Service orchestrates task and timer operations.
type Service struct {
	settings *settings.Store
	timers   *timer.Registry
	bus      *eventbus.EventBus
	executor executil.Executor
	api      APIFactory
	log      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time

	mu     sync.Mutex
	cached *identity
}

// NewService creates a Service from explicit dependencies.
func NewService(
	st *settings.Store,
	timers *timer.Registry,
	bus *eventbus.EventBus,
	exec executil.Executor,
	api APIFactory,
	log zerolog.Logger,
) *Service {
	return &Service{
		settings: st,
		timers:   timers,
		bus:      bus,
		executor: exec,
		api:      api,
		log:      log,
		now:      time.Now,
	}
}

// Timers exposes the timer registry for surfaces that render elapsed time.
func (s *Service) Timers() *timer.Registry {
	return s.timers
}

// Settings exposes the settings store.
func (s *Service) Settings() *settings.Store {
	return s.settings
}

// UpdateSettings validates and persists a settings record, then
// broadcasts the change so the scheduler and idle monitor re-arm.
func (s *Service) UpdateSettings(ctx context.Context, st settings.Settings) error {
	if err := s.settings.Save(ctx, st); err != nil {
		return err
	}
	s.bus.PublishSettingsChanged(eventbus.SettingsChangedPayload{Settings: st})
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	return nil
}

// VerifyCredential checks a stored token against the tracker and
// returns the identity behind it. Used by the setup wizard.
func (s *Service) VerifyCredential(ctx context.Context) (clickup.User, error) {
	api, err := s.api(ctx)
	if err != nil {
		return clickup.User{}, err
	}
	user, err := api.AuthorizedUser(ctx)
	if err != nil {
		return clickup.User{}, fmt.Errorf("verify credential: %w", err)
	}
	return user, nil
}

// DueTasks fetches the tasks due today across every workspace the user
// belongs to. With includeOverdue the lower due bound is dropped so
// past-due open tasks are returned as well. A workspace that fails to
// list is skipped with a warning; the fetch only fails when every
// workspace does.
func (s *Service) DueTasks(ctx context.Context, includeOverdue bool) ([]task.Task, error) {
	api, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	ident, err := s.identity(ctx, api)
	if err != nil {
		return nil, err
	}
	teams, err := s.visibleTeams(ctx, ident.teams)
	if err != nil {
		return nil, err
	}

	window := task.DayWindow(s.now())
	query := clickup.TaskQuery{
		AssigneeID: ident.user.ID,
		DueBefore:  window.DueBeforeMillis(),
	}
	if !includeOverdue {
		query.DueAfter = window.DueAfterMillis()
	}

	tasks, err := s.fetchAcrossTeams(ctx, api, teams, query)
	if err != nil {
		return nil, err
	}

	open := tasks[:0]
	for _, t := range tasks {
		if !t.Closed {
			open = append(open, t)
		}
	}
	sortByDue(open)

	s.bus.PublishTasksRefreshed(eventbus.TasksRefreshedPayload{Count: len(open)})
	return open, nil
}

// Workspace pairs a team with its spaces, for the filter picker.
type Workspace struct {
	Team   clickup.Team
	Spaces []clickup.Space
}

// Workspaces lists every workspace the user belongs to along with its
// spaces. A workspace whose space listing fails is still returned,
// with an empty space list, so it can be filtered on.
func (s *Service) Workspaces(ctx context.Context) ([]Workspace, error) {
	api, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	ident, err := s.identity(ctx, api)
	if err != nil {
		return nil, err
	}

	workspaces := make([]Workspace, 0, len(ident.teams))
	for _, team := range ident.teams {
		spaces, err := api.Spaces(ctx, team.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("team_id", team.ID).Msg("list spaces failed")
			spaces = nil
		}
		workspaces = append(workspaces, Workspace{Team: team, Spaces: spaces})
	}
	return workspaces, nil
}

// visibleTeams applies the workspace filter to the fetch set.
func (s *Service) visibleTeams(ctx context.Context, teams []clickup.Team) ([]clickup.Team, error) {
	st, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]clickup.Team, 0, len(teams))
	for _, t := range teams {
		if st.WorkspaceAllowed(t.ID) {
			visible = append(visible, t)
		}
	}
	return visible, nil
}

// CompletedToday fetches the tasks closed today, for the popup header
// count. Gated behind its feature flag by the callers.
func (s *Service) CompletedToday(ctx context.Context) ([]task.Task, error) {
	api, err := s.api(ctx)
	if err != nil {
		return nil, err
	}

	ident, err := s.identity(ctx, api)
	if err != nil {
		return nil, err
	}
	teams, err := s.visibleTeams(ctx, ident.teams)
	if err != nil {
		return nil, err
	}

	window := task.DayWindow(s.now())
	query := clickup.TaskQuery{
		AssigneeID:    ident.user.ID,
		DueAfter:      window.DueAfterMillis(),
		DueBefore:     window.DueBeforeMillis(),
		IncludeClosed: true,
	}

	tasks, err := s.fetchAcrossTeams(ctx, api, teams, query)
	if err != nil {
		return nil, err
	}

	closed := tasks[:0]
	for _, t := range tasks {
		if t.Closed {
			closed = append(closed, t)
		}
	}
	sortByDue(closed)
	return closed, nil
}

// StartTimer begins tracking a task.
func (s *Service) StartTimer(ctx context.Context, taskID string) error {
	st, err := s.settings.Load(ctx)
	if err != nil {
		return err
	}
	if !st.Enabled(settings.FeatureTimeTracking) {
		return fmt.Errorf("time tracking: %w", ErrFeatureDisabled)
	}

	if err := s.timers.Start(ctx, taskID, s.now()); err != nil {
		return err
	}

	s.log.Info().Str("task_id", taskID).Msg("timer started")
	s.bus.PublishTimerStarted(eventbus.TimerStartedPayload{TaskID: taskID})
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	return nil
}

// StopTimer ends tracking a task and submits the accrued time to the
// tracker. The timer is removed even when the submission fails; the
// returned error reports the failed submission.
func (s *Service) StopTimer(ctx context.Context, taskID string) (time.Duration, error) {
	api, apiErr := s.api(ctx)

	var logger timer.TimeLogger
	if apiErr == nil {
		logger = timeLogger{api: api}
	}

	elapsed, err := s.timers.Stop(ctx, taskID, s.now(), logger)
	if errors.Is(err, timer.ErrTimerNotFound) {
		return 0, err
	}

	s.bus.PublishTimerStopped(eventbus.TimerStoppedPayload{
		TaskID:   taskID,
		Duration: elapsed,
		Logged:   err == nil && apiErr == nil,
	})
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})

	if err == nil && apiErr != nil {
		// Timer removed but nothing was submitted; surface the loss.
		s.log.Warn().
			Err(apiErr).
			Str("task_id", taskID).
			Dur("lost_duration", elapsed).
			Msg("timer stopped without credential; tracked duration was not recorded")
		return elapsed, fmt.Errorf("log time for %s: %w", taskID, apiErr)
	}
	return elapsed, err
}

// DiscardTimer removes a task's timer without logging time.
func (s *Service) DiscardTimer(ctx context.Context, taskID string) {
	s.timers.Discard(ctx, taskID)
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
}

// CompleteTask marks a task complete. A running timer for the task is
// stopped and its time submitted first, so completing never strands a
// live timer.
func (s *Service) CompleteTask(ctx context.Context, taskID string) error {
	if _, running := s.timers.Entries(ctx)[taskID]; running {
		if _, err := s.StopTimer(ctx, taskID); err != nil && !errors.Is(err, timer.ErrTimerNotFound) {
			s.log.Warn().Err(err).Str("task_id", taskID).Msg("stop timer before complete failed")
		}
	}

	api, err := s.api(ctx)
	if err != nil {
		return err
	}
	if err := api.CompleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}

	s.log.Info().Str("task_id", taskID).Msg("task completed")
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	return nil
}

// SnoozeTask reschedules a task to 09:00 local time after the given
// number of days. Only the offsets in SnoozeDays are accepted.
func (s *Service) SnoozeTask(ctx context.Context, taskID string, days int) (time.Time, error) {
	if !validSnooze(days) {
		return time.Time{}, fmt.Errorf("snooze task %s by %d: %w", taskID, days, ErrInvalidSnooze)
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if !st.Enabled(settings.FeatureSnooze) {
		return time.Time{}, fmt.Errorf("snooze: %w", ErrFeatureDisabled)
	}

	api, err := s.api(ctx)
	if err != nil {
		return time.Time{}, err
	}

	target := task.SnoozeTarget(s.now(), days)
	if err := api.RescheduleTask(ctx, taskID, target); err != nil {
		return time.Time{}, fmt.Errorf("snooze task %s: %w", taskID, err)
	}

	s.log.Info().Str("task_id", taskID).Time("until", target).Msg("task snoozed")
	s.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	return target, nil
}

// OpenTask opens a task's web page in the default browser.
func (s *Service) OpenTask(ctx context.Context, taskID string) error {
	api, err := s.api(ctx)
	if err != nil {
		return err
	}
	if _, err := s.executor.Run(ctx, "xdg-open", api.TaskURL(taskID)); err != nil {
		return fmt.Errorf("open task %s: %w", taskID, err)
	}
	return nil
}

// fetchAcrossTeams lists tasks from every workspace, tolerating
// per-workspace failures. Only an all-workspace failure is an error.
func (s *Service) fetchAcrossTeams(ctx context.Context, api API, teams []clickup.Team, query clickup.TaskQuery) ([]task.Task, error) {
	if len(teams) == 0 {
		return nil, nil
	}

	var (
		tasks  []task.Task
		failed int
		first  error
	)
	for _, team := range teams {
		query.TeamID = team.ID
		got, err := api.TasksDue(ctx, query)
		if err != nil {
			s.log.Warn().Err(err).Str("team_id", team.ID).Str("team", team.Name).Msg("workspace task fetch failed")
			failed++
			if first == nil {
				first = err
			}
			continue
		}
		tasks = append(tasks, got...)
	}

	if failed == len(teams) {
		return nil, fmt.Errorf("fetch tasks: all %d workspaces failed: %w", failed, first)
	}
	return tasks, nil
}

// identity returns the cached user and workspace list, fetching it on
// first use. An unauthorized error drops the cache so a fresh token is
// picked up on the next call.
func (s *Service) identity(ctx context.Context, api API) (identity, error) {
	s.mu.Lock()
	cached := s.cached
	s.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	user, err := api.AuthorizedUser(ctx)
	if err != nil {
		return identity{}, fmt.Errorf("fetch authorized user: %w", err)
	}
	teams, err := api.Teams(ctx)
	if err != nil {
		return identity{}, fmt.Errorf("fetch workspaces: %w", err)
	}

	ident := identity{user: user, teams: teams}
	s.mu.Lock()
	s.cached = &ident
	s.mu.Unlock()
	return ident, nil
}

// InvalidateIdentity drops the cached user/workspace identity. Called
// when the credential changes.
func (s *Service) InvalidateIdentity() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func validSnooze(days int) bool {
	for _, d := range SnoozeDays {
		if days == d {
			return true
		}
	}
	return false
}

func sortByDue(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.Before(*b)
		default:
			return tasks[i].Name < tasks[j].Name
		}
	})
}

// timeLogger adapts the tracker API to the registry's TimeLogger.
type timeLogger struct {
	api API
}

func (l timeLogger) LogTime(ctx context.Context, taskID string, start, end time.Time, duration time.Duration) error {
	return l.api.CreateTimeEntry(ctx, taskID, clickup.TimeEntry{
		Start:    start,
		End:      end,
		Duration: duration,
	})
}
