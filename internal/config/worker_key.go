package config

type WorkerKeyStruct struct {
	PersistVerdictsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistVerdictsQueue: "persist_verdicts_queue",
}
