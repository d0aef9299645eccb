package domain

import "neurolab/internal/store/counter"

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&Species{},
		&Device{},
		&Dataset{},
		&HumanSubject{},
		&Experiment{},
		&Paradigm{},
		&File{},
		&Notification{},
		&Task{},
		&TaskStep{},
		&counter.Counter{},
	}
}
