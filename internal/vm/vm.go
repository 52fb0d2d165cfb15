// Package vm wires together the interner, descriptor table, method area,
// heap, native registry, and class loader into a single runnable engine,
// and exposes the one entry point cmd/classvm drives.
package vm

import (
	"fmt"
	"io"

	"github.com/classvm/classvm/internal/classloader"
	"github.com/classvm/classvm/internal/config"
	"github.com/classvm/classvm/internal/debugger"
	"github.com/classvm/classvm/internal/descriptor"
	"github.com/classvm/classvm/internal/heap"
	"github.com/classvm/classvm/internal/interp"
	"github.com/classvm/classvm/internal/methodarea"
	"github.com/classvm/classvm/internal/natives"
	"github.com/classvm/classvm/internal/sym"
)

// Engine owns every component's lifetime for one run. Callers that want
// direct access to a component (the debugger, tests) can reach it through
// the accessors; cmd/classvm only needs Run.
type Engine struct {
	Interner *sym.Interner
	Types    *descriptor.Table
	Area     *methodarea.MethodArea
	Heap     *heap.Heap
	Natives  *natives.Registry
	Loader   *classloader.ChainLoader
	VM       *interp.VM
}

// New builds an Engine from cfg: a jmod-plus-classpath chain loader, a
// method area bound to it, an mmap-backed heap sized from
// cfg.MaxHeapSize, the bootstrap native registry, and the interpreter
// tying all of it together. No class is loaded yet.
func New(cfg config.Config, stdout, stderr io.Writer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	interner := sym.New()
	types := descriptor.NewTable(interner)
	loader := classloader.ForClassPath(cfg.Home, cfg.ClassPath)
	area := methodarea.New(interner, types, loader)

	h, err := heap.New(uint64(cfg.MaxHeapSize))
	if err != nil {
		return nil, fmt.Errorf("vm: allocating heap: %w", err)
	}

	reg := natives.NewRegistry(interner)
	reg.RegisterBootstrap(stdout, stderr)

	interpVM := interp.New(interner, types, area, h, reg, cfg.FrameStackSize, stdout, stderr)

	return &Engine{
		Interner: interner,
		Types:    types,
		Area:     area,
		Heap:     h,
		Natives:  reg,
		Loader:   loader,
		VM:       interpVM,
	}, nil
}

// Run loads and executes cfg.MainClass to completion, matching §6's
// exit-behavior contract: a nil error means a clean exit, a non-nil one
// (whether an *interp.Thrown or an *engineerror.Fatal) means the caller
// should exit non-zero. When cfg.DebugPort is non-zero, a JDWP-lite agent
// is started on its own goroutine before execution begins and torn down
// once Execute returns.
func Run(cfg config.Config, stdout, stderr io.Writer) error {
	engine, err := New(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer engine.Heap.Close()

	if cfg.DebugPort != 0 {
		agent := debugger.New(engine.Area)
		go func() {
			if err := agent.ListenAndServe(cfg.DebugPort); err != nil {
				fmt.Fprintf(stderr, "debugger: %v\n", err)
			}
		}()
		defer agent.Close()
	}

	return engine.VM.Execute(cfg.MainClass)
}
