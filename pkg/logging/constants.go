package logging

// Shortcuts for event types.
// Any event that happens multiple times should have a single character representation.
const (
	ServiceStarted        = "A"
	ServiceStopped        = "B"
	UnitCreated           = "U"
	OwnUnitOrdered        = "O"
	NewTimingUnit         = "T"
	LinearOrderExtended   = "L"
	UnitOrdered           = "Q"
	BatchPersisted        = "W"
	BlockFinalized        = "F"
	BlockNotImported      = "I"
	JustificationReady    = "J"
	JustificationRejected = "j"
	ShareReceived         = "s"
	ConnectionReceived    = "R"
	ConnectionEstablished = "E"
	NotEnoughParents      = "Z"
	ForkDetected          = "X"
	UnitAdded             = "a"
	AddUnits              = "b"
	ReadyToAdd            = "c"
	UnknownParents        = "d"
	DuplicatedUnits       = "e"
	FetchSent             = "g"
	FetchReceived         = "h"
	TipRequested          = "t"
	CatchUpStarted        = "C"
	CatchUpFinished       = "D"
	SessionStarted        = "S"
	SessionEnded          = "N"
	BackupLoaded          = "K"
	SessionPruned         = "P"
	MemoryUsage           = "M"
)

// eventTypeDict maps short event names to human readable form.
var eventTypeDict = map[string]string{
	ServiceStarted:        "service started",
	ServiceStopped:        "service stopped",
	UnitCreated:           "new unit created",
	OwnUnitOrdered:        "unit created by this process was ordered",
	NewTimingUnit:         "new timing unit",
	LinearOrderExtended:   "linear order extended",
	UnitOrdered:           "unit ordered",
	BatchPersisted:        "batch persisted",
	BlockFinalized:        "block finalized",
	BlockNotImported:      "waiting for block import",
	JustificationReady:    "justification gathered",
	JustificationRejected: "justification rejected",
	ShareReceived:         "signature share received",
	ConnectionReceived:    "listener received a connection",
	ConnectionEstablished: "dialer established a connection",
	NotEnoughParents:      "not enough parents to create a unit",
	ForkDetected:          "fork detected",
	UnitAdded:             "unit added to the dag",
	AddUnits:              "adding units started",
	ReadyToAdd:            "units ready to be added",
	UnknownParents:        "units with unknown parents buffered",
	DuplicatedUnits:       "units already in the dag",
	FetchSent:             "fetch request sent",
	FetchReceived:         "fetch request received",
	TipRequested:          "tip requested",
	CatchUpStarted:        "catch-up started",
	CatchUpFinished:       "catch-up finished",
	SessionStarted:        "session started",
	SessionEnded:          "session ended",
	BackupLoaded:          "backup loaded",
	SessionPruned:         "session removed from the backup",
	MemoryUsage:           "memory usage",
}

// Field names.
const (
	Time    = "T"
	Level   = "L"
	Event   = "E"
	Service = "S"
	Size    = "N"
	Creator = "C"
	Round   = "R"
	Height  = "H"
	PID     = "P"
	Session = "Y"
	Hash    = "V"
	Index   = "I"
	Memory  = "M"
	Sent    = "U"
	Recv    = "D"
	Where   = "W"
)

// fieldNameDict maps short field names to human readable form.
var fieldNameDict = map[string]string{
	Time:    "time",
	Level:   "level",
	Event:   "event",
	Service: "service",
	Size:    "size",
	Creator: "creator",
	Round:   "round",
	Height:  "height",
	PID:     "PID",
	Session: "session",
	Hash:    "hash",
	Index:   "index",
	Memory:  "memory",
	Sent:    "sent",
	Recv:    "received",
	Where:   "where",
}

// Service types.
const (
	CreatorService int = iota
	AdderService
	ExtenderService
	FinalizerService
	AggregatorService
	SyncService
	NetworkService
	SessionService
	BackupService
	CatchUpService
	MemLogService
)

// serviceTypeDict maps integer service types to human readable names.
var serviceTypeDict = map[int]string{
	CreatorService:    "CREATOR",
	AdderService:      "ADDER",
	ExtenderService:   "EXTENDER",
	FinalizerService:  "FINAL",
	AggregatorService: "AGGREG",
	SyncService:       "SYNC",
	NetworkService:    "NET",
	SessionService:    "SESSION",
	BackupService:     "BACKUP",
	CatchUpService:    "CATCHUP",
	MemLogService:     "MEMLOG",
}

// Genesis was better with Phil Collins.
const Genesis = "genesis"
