package clickup

import (
	"strconv"
	"time"

	"github.com/colonyops/duetoday/internal/core/task"
)

// User is the authorized user identity.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Team is a workspace the user belongs to.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Space is a space inside a workspace.
type Space struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeEntry is a completed time-tracking interval to record against a task.
type TimeEntry struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// TaskQuery filters the task listing endpoint.
type TaskQuery struct {
	TeamID        string
	AssigneeID    int
	DueAfter      int64 // exclusive lower bound, unix millis; 0 = unbounded
	DueBefore     int64 // exclusive upper bound, unix millis
	IncludeClosed bool
}

// millis is a unix-milliseconds timestamp that the tracker serializes as
// a JSON string.
type millis string

func (m millis) Time() *time.Time {
	if m == "" {
		return nil
	}
	ms, err := strconv.ParseInt(string(m), 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

type userResponse struct {
	User User `json:"user"`
}

type teamsResponse struct {
	Teams []Team `json:"teams"`
}

type spacesResponse struct {
	Spaces []Space `json:"spaces"`
}

type tasksResponse struct {
	Tasks []wireTask `json:"tasks"`
}

type wireTask struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status struct {
		Status string `json:"status"`
		Type   string `json:"type"`
	} `json:"status"`
	DueDate      millis `json:"due_date"`
	TimeEstimate int64  `json:"time_estimate"`
	TimeSpent    int64  `json:"time_spent"`
	List         struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"list"`
	URL    string `json:"url"`
	TeamID string `json:"team_id"`
}

func (w wireTask) toTask() task.Task {
	return task.Task{
		ID:           w.ID,
		Name:         w.Name,
		Status:       w.Status.Status,
		ListID:       w.List.ID,
		ListName:     w.List.Name,
		URL:          w.URL,
		TeamID:       w.TeamID,
		DueDate:      w.DueDate.Time(),
		TimeEstimate: time.Duration(w.TimeEstimate) * time.Millisecond,
		TimeSpent:    time.Duration(w.TimeSpent) * time.Millisecond,
		Closed:       w.Status.Type == "closed" || w.Status.Type == "done",
	}
}
