package database

var Tables []interface{} = []interface{}{
	&IntegrationRecord{},
	&AuditLogEntry{},
}
