package scoring

import (
	"context"
	"log"
)

// DefaultConcurrency caps in-flight grading calls per submission.
const DefaultConcurrency = 5

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

type GradeFunc func(ctx context.Context, t Task) GradedResult

type completion struct {
	index  int
	result GradedResult
}

// Run grades every task with at most limit calls in flight and returns the
// results in task order. Tasks are admitted FIFO and a finished worker picks
// up the next pending task immediately. onProgress is called once per
// completed task from the calling goroutine, which is also the only writer
// of the results slice.
func Run(ctx context.Context, tasks []Task, limit int, grade GradeFunc, onProgress func(Progress)) []GradedResult {
	results := make([]GradedResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if limit > len(tasks) {
		limit = len(tasks)
	}

	jobs := make(chan int, len(tasks))
	for i := range tasks {
		jobs <- i
	}
	close(jobs)

	done := make(chan completion)
	for w := 0; w < limit; w++ {
		go func() {
			for i := range jobs {
				done <- completion{index: i, result: safeGrade(ctx, grade, tasks[i])}
			}
		}()
	}

	for completed := 1; completed <= len(tasks); completed++ {
		c := <-done
		results[c.index] = c.result
		if onProgress != nil {
			onProgress(Progress{Completed: completed, Total: len(tasks)})
		}
	}
	return results
}

func safeGrade(ctx context.Context, grade GradeFunc, t Task) (res GradedResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("grading panic question_id=%s: %v", t.QuestionID, r)
			res = Fallback(t)
		}
	}()
	res = grade(ctx, t)
	res.QuestionID = t.QuestionID
	return res
}
