package internal

type StageKind string

const (
	StageKindSource  StageKind = "source"
	StageKindRouter  StageKind = "router"
	StageKindSession StageKind = "session"
)
