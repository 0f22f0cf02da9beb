package handlers

// KeyRequest addresses the window of a single client key.
type KeyRequest struct {
	Key string `doc:"The client key" example:"203.0.113.7" minLength:"1" path:"key"`
}

// InspectResponse is the stored window state of a client key.
type InspectResponse struct {
	Body struct {
		Key          string `doc:"The client key"                              example:"203.0.113.7" json:"key"`
		Found        bool   `doc:"Whether the key has a live window"           json:"found"`
		Limit        int64  `doc:"Requests allowed per window"                 example:"100"         json:"limit"`
		Remaining    int64  `doc:"Requests left in the current window"         example:"42"          json:"remaining"`
		ResetSeconds int64  `doc:"Seconds until the window ends, 0 if none"    example:"17"          json:"resetSeconds"`
	}
}

// ResetResponse is returned after removing the window of a client key.
type ResetResponse struct {
	Body struct {
		Key      string `doc:"The client key"                          example:"203.0.113.7" json:"key"`
		Previous int64  `doc:"Requests that were left in the window"   example:"0"           json:"previous"`
	}
}

// StatsResponse holds decision counters for a client key.
type StatsResponse struct {
	Body struct {
		Key      string `doc:"The client key"        example:"203.0.113.7" json:"key"`
		Admitted int64  `doc:"Admitted decisions"    example:"120"         json:"admitted"`
		Rejected int64  `doc:"Rejected decisions"    example:"3"           json:"rejected"`
	}
}

// HelloResponse is the response of the rate limited demo endpoint.
type HelloResponse struct {
	Body struct {
		Message   string `doc:"Greeting"                             example:"hello" json:"message"`
		Limit     int64  `doc:"Requests allowed per window"          example:"100"   json:"limit"`
		Remaining int64  `doc:"Requests left, including this one"    example:"99"    json:"remaining"`
	}
}
