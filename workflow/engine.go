package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jing2uo/krx2db/database"
)

// TaskState represents the state of a task execution
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateSkipped   TaskState = "skipped"
	StateFailed    TaskState = "failed"
)

// TaskResult holds the execution result of a task
type TaskResult struct {
	State   TaskState
	Rows    int64
	Message string
	Error   error
}

type ErrorMode int

const (
	ErrorModeStop ErrorMode = iota
	ErrorModeSkip
)

// TaskFunc is the function that executes a task
type TaskFunc func(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error)

// SkipCondition determines if a task should be skipped
type SkipCondition func(ctx context.Context, db database.StateRepository, args *TaskArgs) bool

// Task represents a unit of work with dependencies
type Task struct {
	Name      string
	DependsOn []string
	Executor  TaskFunc
	SkipIf    SkipCondition
	OnError   ErrorMode
}

// TaskExecutor manages and executes tasks with dependency resolution
type TaskExecutor struct {
	db    database.StateRepository
	tasks map[string]*Task
}

// NewTaskExecutor creates a new task executor
func NewTaskExecutor(db database.StateRepository, tasks map[string]*Task) *TaskExecutor {
	return &TaskExecutor{
		db:    db,
		tasks: tasks,
	}
}

// Run 按依赖分批执行，同一批内的任务并发运行
// 返回已执行任务的结果，出错时也返回已有的部分结果
func (te *TaskExecutor) Run(ctx context.Context, taskNames []string, args *TaskArgs) (map[string]*TaskResult, error) {
	results := make(map[string]*TaskResult)
	if len(taskNames) == 0 {
		return results, nil
	}

	order, err := te.topologicalSort(taskNames)
	if err != nil {
		return results, fmt.Errorf("failed to resolve task dependencies: %w", err)
	}

	pending := make(map[string]bool)
	for _, name := range order {
		pending[name] = true
	}

	var mu sync.Mutex
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		ready := te.findReadyTasks(pending, results)
		if len(ready) == 0 {
			return results, fmt.Errorf("no ready tasks: a dependency failed or was not requested")
		}

		var wg sync.WaitGroup
		for _, name := range ready {
			task := te.tasks[name]

			if task.SkipIf != nil && task.SkipIf(ctx, te.db, args) {
				mu.Lock()
				results[name] = &TaskResult{State: StateSkipped, Message: "skipped by condition"}
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(n string, t *Task) {
				defer wg.Done()
				r := te.executeTask(ctx, t, args)
				mu.Lock()
				results[n] = r
				mu.Unlock()
			}(name, task)
		}

		wg.Wait()

		for _, name := range ready {
			result := results[name]
			if result.Error != nil && te.tasks[name].OnError == ErrorModeStop {
				return results, fmt.Errorf("task %s failed: %w", name, result.Error)
			}
			delete(pending, name)
		}
	}

	return results, nil
}

func (te *TaskExecutor) executeTask(ctx context.Context, task *Task, args *TaskArgs) *TaskResult {
	result, err := task.Executor(ctx, te.db, args)
	if err != nil {
		return &TaskResult{
			State: StateFailed,
			Error: err,
		}
	}
	if result == nil {
		return &TaskResult{State: StateCompleted}
	}
	return result
}

func (te *TaskExecutor) topologicalSort(taskNames []string) ([]string, error) {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	taskSet := make(map[string]bool)

	for _, name := range taskNames {
		if _, exists := te.tasks[name]; !exists {
			return nil, fmt.Errorf("task %s not found", name)
		}
		taskSet[name] = true
		inDegree[name] = 0
	}

	for _, name := range taskNames {
		task := te.tasks[name]
		for _, dep := range task.DependsOn {
			if !taskSet[dep] {
				return nil, fmt.Errorf("task %s depends on %s which was not requested", name, dep)
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, neighbor := range adj[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(taskSet) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return order, nil
}

func (te *TaskExecutor) findReadyTasks(pending map[string]bool, results map[string]*TaskResult) []string {
	var ready []string

	for name := range pending {
		task := te.tasks[name]

		allDepsDone := true
		for _, dep := range task.DependsOn {
			result, exists := results[dep]
			if !exists || (result.State != StateCompleted && result.State != StateSkipped) {
				allDepsDone = false
				break
			}
		}

		if allDepsDone {
			ready = append(ready, name)
		}
	}

	sort.Strings(ready)
	return ready
}

func (te *TaskExecutor) HasTask(name string) bool {
	_, exists := te.tasks[name]
	return exists
}
