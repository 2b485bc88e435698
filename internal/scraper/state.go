package scraper

// State is the position of a run in its linear pipeline.
type State int

const (
	StateInit State = iota
	StateFetched
	StateValidated
	StateTitleExtracted
	StateLinksExtracted
	StateDirectoryCreated
	StateDownloading
	StateDone
)

var stateNames = [...]string{
	StateInit:             "init",
	StateFetched:          "fetched",
	StateValidated:        "validated",
	StateTitleExtracted:   "title_extracted",
	StateLinksExtracted:   "links_extracted",
	StateDirectoryCreated: "directory_created",
	StateDownloading:      "downloading",
	StateDone:             "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}
