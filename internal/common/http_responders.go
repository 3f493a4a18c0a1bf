package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrorInternal = errors.New("internal_error")
	ErrorNotFound = errors.New("not_found")
)

type HttpResponse struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

func GetNotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendHttpFailResponse(w, r, http.StatusNotFound, fmt.Sprintf("endpoint[%s] not found", r.URL.Path), ErrorNotFound)
	}
}

func SendHttpFailResponse(
	responseWriter http.ResponseWriter,
	request *http.Request,
	statusCode int,
	message string,
	errorCode ...error,
) {
	log := GetRequestLogger(request)
	responseData := HttpResponse{
		Message: message,
		Success: false,
		Data:    "generic_error",
	}
	if len(errorCode) > 0 && errorCode[0] != nil {
		responseData.Data = errorCode[0].Error()
		log(LogLevelError, fmt.Sprintf("%s: %s", message, errorCode[0]))
	} else {
		log(LogLevelError, message)
	}
	writeJson(responseWriter, statusCode, responseData)
}

func SendHttpSuccessResponse(
	responseWriter http.ResponseWriter,
	request *http.Request,
	statusCode int,
	message string,
	data ...any,
) {
	responseData := HttpResponse{
		Message: message,
		Success: true,
	}
	if len(data) > 0 {
		responseData.Data = data[0]
	}
	writeJson(responseWriter, statusCode, responseData)
}

// SendHttpFileResponse writes a downloadable file
func SendHttpFileResponse(
	responseWriter http.ResponseWriter,
	request *http.Request,
	contentType string,
	fileName string,
	data []byte,
) {
	responseWriter.Header().Set("Content-Type", contentType)
	if fileName != "" {
		responseWriter.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}
	responseWriter.WriteHeader(http.StatusOK)
	if _, err := responseWriter.Write(data); err != nil {
		GetRequestLogger(request)(LogLevelWarn, fmt.Sprintf("failed to write file[%s]: %s", fileName, err))
	}
}

func writeJson(responseWriter http.ResponseWriter, statusCode int, data HttpResponse) {
	res, _ := json.Marshal(data)
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
	responseWriter.Write(res)
}
