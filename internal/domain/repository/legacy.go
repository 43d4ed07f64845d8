package repository

import "context"

// LegacyFederationRecord es una fila de local_o365_objects del plugin compañero.
// Solo lectura.
type LegacyFederationRecord struct {
	ID           int64
	Type         string // "user" para identidades de usuario
	ExternalName string // o365name: clave del lado del provider
	ObjectID     string
	LocalUserID  int64 // moodleid
}

// LegacyFederationRepository resuelve mapeos legacy a username local.
type LegacyFederationRepository interface {
	// LookupUsername retorna el username de la cuenta local mapeada al nombre
	// externo dado. ok=false si el plugin compañero no está instalado, si no hay
	// mapeo, o si la cuenta mapeada no existe.
	LookupUsername(ctx context.Context, externalName string) (username string, ok bool, err error)
}
