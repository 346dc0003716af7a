package admin

import (
	"net/http"
	"sort"

	"helpdesk/api/integrations"
	"helpdesk/scheduler"
)

// ScheduledTasksHandler handles API requests for scheduled tasks
type ScheduledTasksHandler struct {
	SchedulerService *scheduler.SchedulerService
}

type ListedTask struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
	Enabled     bool   `json:"enabled"`
}

type TasksResponse struct {
	Tasks []ListedTask `json:"tasks"`
}

type RunTaskResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListTasks returns all registered tasks
func (h *ScheduledTasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.SchedulerService.ListTasks()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	listed := make([]ListedTask, 0, len(tasks))
	for _, task := range tasks {
		listed = append(listed, ListedTask{
			Name:        task.Name,
			Description: task.Description,
			Schedule:    task.Schedule,
			Enabled:     task.Enabled,
		})
	}

	integrations.WriteJSON(w, http.StatusOK, TasksResponse{Tasks: listed})
}

// RunTask runs a task immediately and waits for it
func (h *ScheduledTasksHandler) RunTask(w http.ResponseWriter, r *http.Request) {
	taskName := r.PathValue("task_name")
	if _, ok := h.SchedulerService.GetTaskByName(taskName); !ok {
		integrations.WriteError(w, r, integrations.NotFoundError("Task not found"))
		return
	}

	if err := h.SchedulerService.RunTaskNow(r.Context(), taskName); err != nil {
		integrations.WriteError(w, r, integrations.UpstreamError("Task "+taskName+" failed", err))
		return
	}

	integrations.WriteJSON(w, http.StatusOK, RunTaskResponse{
		Success: true,
		Message: "Task " + taskName + " completed",
	})
}
