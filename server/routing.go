package server

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"helpdesk/api/admin"
	"helpdesk/api/integrations"
)

func BackendRouting(
	db *gorm.DB,
	integrationsHandler *integrations.IntegrationsHandler,
	tasksHandler *admin.ScheduledTasksHandler,
) *http.ServeMux {
	mux := http.NewServeMux()
	v1Apis := http.NewServeMux()

	v1Apis.HandleFunc("GET /integrations", integrationsHandler.List)
	v1Apis.HandleFunc("GET /integrations/{provider}", integrationsHandler.Get)
	v1Apis.HandleFunc("POST /integrations/{provider}/connect", integrationsHandler.Connect)
	v1Apis.HandleFunc("POST /integrations/{provider}/disconnect", integrationsHandler.Disconnect)
	v1Apis.HandleFunc("POST /integrations/{provider}/test", integrationsHandler.Test)
	v1Apis.HandleFunc("GET /integrations/{provider}/mapping", integrationsHandler.GetMapping)
	v1Apis.HandleFunc("POST /integrations/{provider}/mapping", integrationsHandler.SaveMapping)
	v1Apis.HandleFunc("GET /integrations/{provider}/logs", integrationsHandler.Logs)

	v1Apis.HandleFunc("POST /oauth/{provider}/credentials", integrationsHandler.SaveOAuthCredentials)
	v1Apis.HandleFunc("POST /oauth/{provider}/start", integrationsHandler.StartOAuth)
	v1Apis.HandleFunc("GET /oauth/{provider}/callback", integrationsHandler.OAuthCallback)
	v1Apis.HandleFunc("POST /oauth/{provider}/token", integrationsHandler.ClientCredentialsToken)

	v1Apis.HandleFunc("POST /webhook/replay", integrationsHandler.ReplayWebhook)
	v1Apis.HandleFunc("GET /webhook/samples", integrationsHandler.ListSampleEvents)

	v1Apis.HandleFunc("POST /mock/{provider}/{resource}", integrationsHandler.MockCall)

	if tasksHandler != nil {
		v1Apis.HandleFunc("GET /admin/tasks", tasksHandler.ListTasks)
		v1Apis.HandleFunc("POST /admin/tasks/{task_name}/run", tasksHandler.RunTask)
	}

	mux.HandleFunc("GET /_health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Database is not reachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Server is running"))
	})
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", CreateStack(Recover, Logging)(v1Apis)))

	return mux
}
