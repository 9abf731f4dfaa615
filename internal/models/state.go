package models

// ScanStatus is the process-wide phase of the scanner.
type ScanStatus string

const (
	ScanStatusIdle     ScanStatus = "IDLE"
	ScanStatusScanning ScanStatus = "SCANNING"
	ScanStatusSuccess  ScanStatus = "SUCCESS"
	ScanStatusError    ScanStatus = "ERROR"
)

// IsValid checks if the status is one of the known values.
func (s ScanStatus) IsValid() bool {
	switch s {
	case ScanStatusIdle, ScanStatusScanning, ScanStatusSuccess, ScanStatusError:
		return true
	default:
		return false
	}
}

// LoadingState describes a foreground load in progress.
type LoadingState struct {
	IsLoading bool   `json:"isLoading"`
	Message   string `json:"message,omitempty"`
}

// ErrorState is the active, user-visible error.
type ErrorState struct {
	HasError  bool   `json:"hasError"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

// ErrorStateFrom converts a normalized fetch failure into the active error.
func ErrorStateFrom(err *FetchError) ErrorState {
	if err == nil {
		return ErrorState{}
	}
	return ErrorState{
		HasError:  true,
		Message:   err.Message,
		Code:      err.Code,
		Retryable: err.Retryable,
	}
}

// MaxScanHistory bounds AppState.ScanHistory.
const MaxScanHistory = 50

// AppState is the aggregate owned by the state store. Snapshots are replaced
// wholesale; callers must treat slices and pointers inside as read-only.
type AppState struct {
	CurrentTote   *ToteContents      `json:"currentTote"`
	ScanHistory   []ScanHistoryEntry `json:"scanHistory"`
	Loading       LoadingState       `json:"loading"`
	Error         ErrorState         `json:"error"`
	ScanStatus    ScanStatus         `json:"scanStatus"`
	LastScannedID string             `json:"lastScannedId,omitempty"`
}

// InitialAppState returns the state the store starts in and resets to.
func InitialAppState() AppState {
	return AppState{
		ScanHistory: []ScanHistoryEntry{},
		ScanStatus:  ScanStatusIdle,
	}
}

// HistoryEqual compares two history sequences by entry identity.
// Entries are immutable once appended, so ids are sufficient.
func HistoryEqual(a, b []ScanHistoryEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
