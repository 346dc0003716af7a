package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"helpdesk/api/integrations"
)

// SchedulerService manages all scheduled tasks
type SchedulerService struct {
	scheduler       *gocron.Scheduler
	integrations    *integrations.IntegrationsHandler
	stateTTL        time.Duration
	now             func() time.Time
	ctx             context.Context
	cancel          context.CancelFunc
	mu              sync.Mutex
	registeredTasks map[string]Task
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(handler *integrations.IntegrationsHandler, stateTTL time.Duration, now func() time.Time) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	if now == nil {
		now = time.Now
	}
	if stateTTL <= 0 {
		stateTTL = integrations.DefaultStateTTL
	}

	return &SchedulerService{
		scheduler:       gocron.NewScheduler(time.UTC),
		integrations:    handler,
		stateTTL:        stateTTL,
		now:             now,
		ctx:             ctx,
		cancel:          cancel,
		registeredTasks: make(map[string]Task),
	}
}

// Start begins running the scheduler
func (s *SchedulerService) Start() {
	log.Println("Starting scheduler service...")
	s.scheduler.StartAsync()
}

// Stop halts all scheduled jobs and cancels running handlers
func (s *SchedulerService) Stop() {
	log.Println("Stopping scheduler service...")
	s.scheduler.Stop()
	s.cancel()
}

// RegisterTasks sets up all scheduled tasks
func (s *SchedulerService) RegisterTasks() {
	s.registerTaskGroup(OAuthMaintenanceTasks(s))

	log.Printf("Registered %d scheduled tasks", len(s.ListTasks()))
}

func (s *SchedulerService) registerTaskGroup(tasks []Task) {
	for _, task := range tasks {
		if !task.Enabled {
			log.Printf("Skipping disabled task: %s", task.Name)
			continue
		}

		if err := s.registerTask(task); err != nil {
			log.Printf("Error scheduling task %s: %v", task.Name, err)
		}
	}
}

func (s *SchedulerService) registerTask(task Task) error {
	job, err := s.scheduler.Cron(task.Schedule).Do(func() {
		log.Printf("Running scheduled task: %s - %s", task.Name, task.Description)

		if err := task.Handler(s.ctx); err != nil {
			log.Printf("Error in task %s: %v", task.Name, err)
		} else {
			log.Printf("Task %s completed successfully", task.Name)
		}
	})
	if err != nil {
		return err
	}
	job.Tag(task.Name)

	s.mu.Lock()
	s.registeredTasks[task.Name] = task
	s.mu.Unlock()

	log.Printf("Registered task: %s (%s)", task.Name, task.Schedule)
	return nil
}

// GetTaskByName returns a task by its name
func (s *SchedulerService) GetTaskByName(name string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, exists := s.registeredTasks[name]
	return task, exists
}

// ListTasks returns all registered tasks
func (s *SchedulerService) ListTasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]Task, 0, len(s.registeredTasks))
	for _, task := range s.registeredTasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// RunTaskNow runs a task immediately by name
func (s *SchedulerService) RunTaskNow(ctx context.Context, name string) error {
	task, exists := s.GetTaskByName(name)
	if !exists {
		return fmt.Errorf("task %s not found", name)
	}

	return task.Handler(ctx)
}
