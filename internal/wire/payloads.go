package wire

// DataType identifies the element type carried by an array or segment.
type DataType string

const (
	DataTypeInt    DataType = "int"
	DataTypeDouble DataType = "double"
)

// RegisterWorkerPayload is carried by REGISTER_WORKER (worker -> master).
type RegisterWorkerPayload struct {
	Host   string `json:"host"`
	Port   string `json:"port"`
	Cores  int    `json:"cores"`
	Memory int64  `json:"memory"`
}

// CreateArrayPayload is carried by CREATE_ARRAY (client -> master).
type CreateArrayPayload struct {
	ArrayID  string    `json:"arrayId"`
	DataType DataType  `json:"dataType"`
	Values   []float64 `json:"values"`
}

// ApplyOperationPayload is carried by APPLY_OPERATION (client -> master).
type ApplyOperationPayload struct {
	ArrayID   string `json:"arrayId"`
	Operation string `json:"operation"`
}

// GetResultPayload is carried by GET_RESULT (client -> master).
type GetResultPayload struct {
	ArrayID string `json:"arrayId"`
}

// OperationStatus is the closed set of status values for OperationComplete.
type OperationStatus string

const (
	StatusCreated    OperationStatus = "created"
	StatusProcessing OperationStatus = "processing"
	StatusComplete   OperationStatus = "complete"
	StatusError      OperationStatus = "error"
)

// OperationCompletePayload is carried by OPERATION_COMPLETE (master -> client).
type OperationCompletePayload struct {
	Status  OperationStatus `json:"status"`
	ArrayID string          `json:"arrayId,omitempty"`
	Result  string          `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SegmentPayload is carried by DISTRIBUTE_ARRAY and REPLICATE_DATA
// (master -> worker).
type SegmentPayload struct {
	ArrayID    string    `json:"arrayId"`
	SegmentID  int       `json:"segmentId"`
	StartIndex int       `json:"startIndex"`
	EndIndex   int       `json:"endIndex"`
	DataType   DataType  `json:"dataType"`
	Data       []float64 `json:"data"`
	IsPrimary  bool      `json:"isPrimary"`
}

// ProcessSegmentPayload is carried by PROCESS_SEGMENT (master -> worker).
type ProcessSegmentPayload struct {
	ArrayID   string `json:"arrayId"`
	Operation string `json:"operation"`
}

// SegmentResultPayload is carried by SEGMENT_RESULT (worker -> master).
type SegmentResultPayload struct {
	ArrayID   string    `json:"arrayId"`
	SegmentID int       `json:"segmentId"`
	Status    string    `json:"status"`
	Data      []float64 `json:"data"`
}

// RecoverDataPayload is carried by RECOVER_DATA (master -> worker).
type RecoverDataPayload struct {
	ArrayID     string `json:"arrayId"`
	SegmentID   int    `json:"segmentId"`
	MakePrimary bool   `json:"makePrimary"`
}

// RecoveryCompletePayload is carried by RECOVERY_COMPLETE (worker -> master).
type RecoveryCompletePayload struct {
	ArrayID   string `json:"arrayId"`
	SegmentID int    `json:"segmentId"`
	Status    string `json:"status"`
}
