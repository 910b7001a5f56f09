// Package bletel decodes telemetry packets streamed by wearable devices.
package bletel

import (
	"context"
	"fmt"
	"sync"
)

// Stage is a component of the pipeline: a packet source or a device session.
type Stage interface {
	Init(ctx context.Context) error
	Run(ctx context.Context)
	Stop()
}

// Pipeline runs its stages concurrently.
type Pipeline struct {
	stages []Stage

	wg        *sync.WaitGroup
	isRunning bool
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		stages: []Stage{},

		wg:        &sync.WaitGroup{},
		isRunning: false,
	}
}

// AddStage adds a stage to the pipeline.
// Stages added after Run are ignored.
func (p *Pipeline) AddStage(stage Stage) {
	if p.isRunning {
		return
	}

	p.stages = append(p.stages, stage)
}

// Init initializes the stages in the order they were added,
// stopping at the first error.
func (p *Pipeline) Init(ctx context.Context) error {
	for idx, stage := range p.stages {
		if err := stage.Init(ctx); err != nil {
			return fmt.Errorf("pipeline: stage %d: %w", idx, err)
		}
	}

	return nil
}

// Run starts every stage in its own goroutine and returns immediately.
func (p *Pipeline) Run(ctx context.Context) {
	p.isRunning = true

	p.wg.Add(len(p.stages))

	for _, stage := range p.stages {
		go func() {
			defer p.wg.Done()
			stage.Run(ctx)
		}()
	}
}

// Wait blocks until every stage has returned from Run.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Stop stops every stage and waits for them to return.
func (p *Pipeline) Stop() {
	for _, stage := range p.stages {
		stage.Stop()
	}

	p.wg.Wait()
}
