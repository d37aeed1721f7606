package lib

import (
	"strings"

	"github.com/gofrs/uuid"
)

// DynamoDBNameSuffix returns a short lowercase hex token for generated table names.
func DynamoDBNameSuffix() string {
	id := uuid.Must(uuid.NewV4())
	return strings.ReplaceAll(id.String(), "-", "")[:dynamoDBNameSuffixLength]
}

// DynamoDBResolveName returns the table name to deploy and the name input to
// record for the next deploy. A table is only renamed when the name input changes.
func DynamoDBResolveName(state DynamoDBState, nameInput string, gen func() string) (string, string) {
	if state.Name != "" && state.NameInput == nameInput {
		return state.Name, nameInput
	}
	if gen == nil {
		gen = DynamoDBNameSuffix
	}
	if nameInput == "" {
		return gen(), nameInput
	}
	return nameInput + "-" + gen(), nameInput
}
