package rpcbridge

// AuthRequest carries the user's access token to the detection service.
type AuthRequest struct {
	Token string `json:"token"`
}

// AuthResponse carries the session token and quota returned by auth.
type AuthResponse struct {
	Success      bool `json:"success"`
	SessionToken string `json:"session_token"`
	Quota        *int `json:"quota,omitempty"`
}

// HealthRequest is the empty health-check request.
type HealthRequest struct{}

// HealthResponse reports whether the service is reachable and ready.
type HealthResponse struct {
	Status bool `json:"status"`
}

// Bbox is one server-reported detection box, encoded one-to-one with
// model.Bbox on the wire.
type Bbox struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Class int     `json:"class"`
	Score float64 `json:"score"`
}

// DetectRequest is one outbound frame submitted for detection.
type DetectRequest struct {
	UUID   string  `json:"uuid"`
	Image  []byte  `json:"image"`
	Width  int32   `json:"width"`
	Height int32   `json:"height"`
	IOU    float64 `json:"iou"`
	Score  float64 `json:"score"`
	IFrame bool    `json:"iframe"`
}

// DetectResponse is one inbound detection result, correlated back to
// its request by UUID.
type DetectResponse struct {
	UUID   string `json:"uuid"`
	Bboxes []Bbox `json:"bboxes"`
	Label  string `json:"label"`
}
