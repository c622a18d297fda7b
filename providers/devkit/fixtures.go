package devkit

import (
	"encoding/json"
	"net/http"
)

// JSON scripts a response with the given status and a JSON encoded body.
// Strings and byte slices are used verbatim.
func JSON(status int, body any) TransportScript {
	var raw []byte
	switch typed := body.(type) {
	case nil:
		raw = nil
	case string:
		raw = []byte(typed)
	case []byte:
		raw = typed
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			panic("devkit: encode fixture body: " + err.Error())
		}
		raw = encoded
	}
	script := TransportScript{}
	script.Response.StatusCode = status
	script.Response.Headers = map[string]string{"Content-Type": "application/json"}
	script.Response.Body = raw
	return script
}

func OK(body any) TransportScript {
	return JSON(http.StatusOK, body)
}

// Failure scripts a transport level error with no response.
func Failure(err error) TransportScript {
	return TransportScript{Err: err}
}
