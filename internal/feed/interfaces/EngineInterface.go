package interfaces

type EngineInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
	State() string
}
