package config

type WorkerKeyStruct struct {
	BehaviorQueue string
}

var WorkerKey = &WorkerKeyStruct{
	BehaviorQueue: "abnormal_behavior_queue",
}
