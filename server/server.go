package server

import (
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"helpdesk/api/admin"
	"helpdesk/api/integrations"
)

func BackendServer(
	db *gorm.DB,
	integrationsHandler *integrations.IntegrationsHandler,
	tasksHandler *admin.ScheduledTasksHandler,
	host string,
	port int64,
	ssl bool,
) (*http.Server, string) {
	var protocol string
	var fullHost string

	router := BackendRouting(db, integrationsHandler, tasksHandler)
	if ssl {
		protocol = "https"
	} else {
		protocol = "http"
	}

	fullHost = fmt.Sprintf("%s://%s:%d", protocol, host, port)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server, fullHost
}
