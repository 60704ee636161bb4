package constant

import "os"

// <NodeDir>/                    (e.g., /home/oracle/.poracle)
// └── config/
//	└── poracle_config.json
// └── data/
//	└── oracle.db
// └── keys/
//	└── oracle.json
//	└── hubs.json

const (
	NodeDir = ".poracle"

	ConfigSubdir   = "config"
	ConfigFileName = "poracle_config.json"

	DataSubdir = "data"
	KeysSubdir = "keys"

	// EventCursorName is the poll cursor row tracking the hub event feed.
	EventCursorName = "hub_events"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
