package sample

import (
	"sync"
	"sync/atomic"

	"github.com/iluxa/sflow-rt/util"
)

const sourceName = "source"

// Source represents a generic sample source.
type Source interface {
	util.Module
	// Start begins delivering samples to the ingestor from the source's
	// own goroutines and returns once delivery is set up.
	Start(Ingestor) error
	// Stop shuts down the source and waits for in-flight deliveries.
	Stop()
}

// Sources holds a collection of sources started and stopped together.
type Sources struct {
	stopped uint32
	sources []Source
}

// Append adds a source to this collection.
func (s *Sources) Append(a Source) {
	s.sources = append(s.sources, a)
}

// Empty reports whether no source was added.
func (s *Sources) Empty() bool {
	return len(s.sources) == 0
}

// Init initializes every source.
func (s *Sources) Init() {
	for _, src := range s.sources {
		src.Init()
	}
}

// Start starts every source. On error the already started sources are
// stopped again.
func (s *Sources) Start(ingest Ingestor) error {
	for i, src := range s.sources {
		if err := src.Start(ingest); err != nil {
			for _, started := range s.sources[:i] {
				started.Stop()
			}
			return err
		}
	}
	return nil
}

// Stop stops all sources. Safe to call more than once.
func (s *Sources) Stop() {
	if !atomic.CompareAndSwapUint32(&s.stopped, 0, 1) {
		return
	}
	var wg sync.WaitGroup
	for _, src := range s.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			src.Stop()
		}(src)
	}
	wg.Wait()
}

// RegisterSource registers a source (see module system in util).
func RegisterSource(name, desc string, new util.ModuleCreator, help util.ModuleHelp) {
	util.RegisterModule(sourceName, name, desc, new, help)
}

// SourceHelp displays help for a specific source (see module system in util).
func SourceHelp(which string) error {
	return util.GetModuleHelp(sourceName, which)
}

// MakeSource creates a source instance (see module system in util).
func MakeSource(which string, args []string) ([]string, Source, error) {
	args, module, err := util.CreateModule(sourceName, which, args)
	if err != nil {
		return args, nil, err
	}
	return args, module.(Source), nil
}

// ListSources returns the registered sources (see module system in util).
func ListSources() ([]util.ModuleDescription, error) {
	return util.GetModules(sourceName)
}
