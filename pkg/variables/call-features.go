package variables

import (
	"log"
	"os"
	"strconv"
)

const (
	HTTP_PORT_DEFAULT = "8080"
	HTTP_PORT_NAME    = "HTTP_PORT"

	MEDIA_CONTROL_URL_DEFAULT = "http://127.0.0.1:8089"
	MEDIA_CONTROL_URL_NAME    = "MEDIA_CONTROL_URL"

	MEDIA_API_TOKEN_DEFAULT = ""
	MEDIA_API_TOKEN_NAME    = "MEDIA_API_TOKEN"

	MEDIA_REQUEST_TIMEOUT_SECONDS_DEFAULT = "10"
	MEDIA_REQUEST_TIMEOUT_SECONDS_NAME    = "MEDIA_REQUEST_TIMEOUT_SECONDS"

	COORDINATION_DB_DEFAULT = ""
	COORDINATION_DB_NAME    = "COORDINATION_DB"
)

func Env(variableName, defaultValue string) string {
	if variable := os.Getenv(variableName); variable != "" {
		log.Printf("[%s]: %s", variableName, variable)
		return variable
	}
	log.Printf("[%s_DEFAULT]: %s", variableName, defaultValue)
	return defaultValue
}

func ParseInt(variable string) (int, error) {
	return strconv.Atoi(variable)
}
