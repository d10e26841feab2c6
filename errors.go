package norma

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeDeclaration ErrorType = "declaration"
	ErrorTypeLookup      ErrorType = "lookup"
	ErrorTypeMarshalling ErrorType = "marshalling"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeInternal    ErrorType = "internal"
)

// SettingsError represents unified errors from the settings core.
// Declaration and lookup errors are configuration/programmer errors:
// they are never retried and surface to the caller unchanged.
type SettingsError struct {
	Type      ErrorType      `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Class     string         `json:"class,omitempty"`
	Parameter string         `json:"parameter,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *SettingsError) Error() string {
	if e.Class != "" && e.Parameter != "" {
		return fmt.Sprintf("[%s:%s] class '%s' parameter '%s': %s",
			e.Type, e.Code, e.Class, e.Parameter, e.Message)
	}
	if e.Class != "" {
		return fmt.Sprintf("[%s:%s] class '%s': %s", e.Type, e.Code, e.Class, e.Message)
	}
	if e.Parameter != "" {
		return fmt.Sprintf("[%s:%s] parameter '%s': %s", e.Type, e.Code, e.Parameter, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *SettingsError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to a SettingsError
func (e *SettingsError) WithDetails(details map[string]any) *SettingsError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to a SettingsError
func (e *SettingsError) WithDetail(key string, value any) *SettingsError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause to a SettingsError
func (e *SettingsError) WithCause(cause error) *SettingsError {
	e.Cause = cause
	return e
}

// WithClass adds class context to a SettingsError
func (e *SettingsError) WithClass(class string) *SettingsError {
	e.Class = class
	return e
}

// WithParameter adds parameter context to a SettingsError
func (e *SettingsError) WithParameter(parameter string) *SettingsError {
	e.Parameter = parameter
	return e
}

// Error codes consolidated from all modules
const (
	// Declaration and schema-building errors
	ErrCodeNotASettingsClass  = "NOT_A_SETTINGS_CLASS"
	ErrCodeSchemaConflict     = "SCHEMA_CONFLICT"
	ErrCodeMissingType        = "MISSING_TYPE"
	ErrCodeMissingNullability = "MISSING_NULLABILITY"
	ErrCodeInvalidVersion     = "INVALID_VERSION"
	ErrCodeMissingMigrator    = "MISSING_MIGRATOR"
	ErrCodeReservedName       = "RESERVED_NAME"
	ErrCodeInvalidDeclaration = "INVALID_DECLARATION"
	ErrCodeNoDefaultValue     = "NO_DEFAULT_VALUE"
	ErrCodeNotInstantiable    = "NOT_INSTANTIABLE"

	// Registry errors
	ErrCodeUnknownName       = "UNKNOWN_NAME"
	ErrCodeUnknownAdapter    = "UNKNOWN_ADAPTER"
	ErrCodeUnknownType       = "UNKNOWN_TYPE"
	ErrCodeUnknownMigrator   = "UNKNOWN_MIGRATOR"
	ErrCodeDuplicateAdapter  = "DUPLICATE_ADAPTER"
	ErrCodeDuplicateType     = "DUPLICATE_TYPE"
	ErrCodeDuplicateClass    = "DUPLICATE_CLASS"
	ErrCodeDuplicateMigrator = "DUPLICATE_MIGRATOR"

	// Marshalling errors
	ErrCodeSchemaMismatch    = "SCHEMA_MISMATCH"
	ErrCodeConversionFailed  = "CONVERSION_FAILED"
	ErrCodeInvalidNormalized = "INVALID_NORMALIZED_VALUE"
	ErrCodeMigrationFailed   = "MIGRATION_FAILED"

	// Storage errors
	ErrCodeStorageFailed = "STORAGE_FAILED"

	// Misc
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeSchemaExportFailed = "SCHEMA_EXPORT_FAILED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
)

// ============================================================================
// SettingsError Constructors
// ============================================================================

// NewSettingsError creates a new SettingsError
func NewSettingsError(errorType ErrorType, code, message string) *SettingsError {
	return &SettingsError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// Declaration error constructors

// NewNotASettingsClassError creates an error for schema requests on undeclared classes
func NewNotASettingsClassError(class string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeNotASettingsClass,
		Message: "class carries no settings declaration",
		Class:   class,
		Details: make(map[string]any),
	}
}

// NewSchemaConflictError creates an error for duplicate class-level or property-level declarations
func NewSchemaConflictError(class, message string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeSchemaConflict,
		Message: message,
		Class:   class,
		Details: make(map[string]any),
	}
}

// NewMissingTypeError creates an error for parameters whose type is neither declared nor guessable
func NewMissingTypeError(class, parameter string) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeDeclaration,
		Code:      ErrCodeMissingType,
		Message:   "parameter type is not declared and cannot be guessed",
		Class:     class,
		Parameter: parameter,
		Details:   make(map[string]any),
	}
}

// NewMissingNullabilityError creates an error for parameters whose nullability cannot be derived
func NewMissingNullabilityError(class, parameter string) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeDeclaration,
		Code:      ErrCodeMissingNullability,
		Message:   "parameter nullability is not declared and cannot be derived",
		Class:     class,
		Parameter: parameter,
		Details:   make(map[string]any),
	}
}

// NewInvalidVersionError creates an error for non-positive declared versions
func NewInvalidVersionError(class string, version int) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeInvalidVersion,
		Message: fmt.Sprintf("declared version %d must be a positive integer", version),
		Class:   class,
		Details: map[string]any{
			"version": version,
		},
	}
}

// NewMissingMigratorError creates an error for versioned classes without a migrator identifier
func NewMissingMigratorError(class string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeMissingMigrator,
		Message: "class declares a version but no migrator identifier",
		Class:   class,
		Details: make(map[string]any),
	}
}

// NewReservedNameError creates an error for parameter names colliding with reserved keys
func NewReservedNameError(class, name string) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeDeclaration,
		Code:      ErrCodeReservedName,
		Message:   "parameter name collides with a reserved storage key",
		Class:     class,
		Parameter: name,
		Details:   make(map[string]any),
	}
}

// NewNoDefaultValueError creates an error for reset targets lacking a usable default
func NewNoDefaultValueError(class, parameter string) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeDeclaration,
		Code:      ErrCodeNoDefaultValue,
		Message:   "no default value available for non-nullable parameter",
		Class:     class,
		Parameter: parameter,
		Details:   make(map[string]any),
	}
}

// NewNotInstantiableError creates an error for classes missing an instantiation capability
func NewNotInstantiableError(class string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeDeclaration,
		Code:    ErrCodeNotInstantiable,
		Message: "class cannot be instantiated without a registered prototype or factory",
		Class:   class,
		Details: make(map[string]any),
	}
}

// Lookup error constructors

// NewUnknownNameError creates an error for parameter/embed lookups by an unknown name
func NewUnknownNameError(class, name string) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeLookup,
		Code:      ErrCodeUnknownName,
		Message:   "no parameter or embedded settings declared under this name",
		Class:     class,
		Parameter: name,
		Details:   make(map[string]any),
	}
}

// NewUnknownAdapterError creates an error for storage adapter registry misses
func NewUnknownAdapterError(identifier string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeLookup,
		Code:    ErrCodeUnknownAdapter,
		Message: fmt.Sprintf("storage adapter '%s' is not registered", identifier),
		Details: map[string]any{
			"adapter": identifier,
		},
	}
}

// NewUnknownTypeError creates an error for type converter registry misses
func NewUnknownTypeError(identifier string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeLookup,
		Code:    ErrCodeUnknownType,
		Message: fmt.Sprintf("type converter '%s' is not registered", identifier),
		Details: map[string]any{
			"type": identifier,
		},
	}
}

// NewUnknownMigratorError creates an error for migrator registry misses
func NewUnknownMigratorError(identifier string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeLookup,
		Code:    ErrCodeUnknownMigrator,
		Message: fmt.Sprintf("migrator '%s' is not registered", identifier),
		Details: map[string]any{
			"migrator": identifier,
		},
	}
}

// Marshalling error constructors

// NewSchemaMismatchError creates an error for objects handed to a foreign schema
func NewSchemaMismatchError(class, actual string) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeMarshalling,
		Code:    ErrCodeSchemaMismatch,
		Message: fmt.Sprintf("object of class '%s' does not belong to this schema", actual),
		Class:   class,
		Details: map[string]any{
			"actual_class": actual,
		},
	}
}

// NewConversionError creates an error for converter failures on ill-typed input
func NewConversionError(class, parameter string, cause error) *SettingsError {
	return &SettingsError{
		Type:      ErrorTypeMarshalling,
		Code:      ErrCodeConversionFailed,
		Message:   "value conversion failed",
		Class:     class,
		Parameter: parameter,
		Cause:     cause,
		Details:   make(map[string]any),
	}
}

// NewMigrationError creates an error for failed version migrations
func NewMigrationError(class string, from, to int, cause error) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeMarshalling,
		Code:    ErrCodeMigrationFailed,
		Message: fmt.Sprintf("migration from version %d to %d failed", from, to),
		Class:   class,
		Cause:   cause,
		Details: map[string]any{
			"from_version": from,
			"to_version":   to,
		},
	}
}

// Storage error constructors

// NewStorageError creates an error wrapping a storage adapter failure
func NewStorageError(message string, cause error) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeStorage,
		Code:    ErrCodeStorageFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *SettingsError {
	return &SettingsError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// ============================================================================
// Error checking utilities
// ============================================================================

func hasCode(err error, code string) bool {
	var se *SettingsError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotASettingsClassError checks if an error reports an undeclared class
func IsNotASettingsClassError(err error) bool {
	return hasCode(err, ErrCodeNotASettingsClass)
}

// IsSchemaConflictError checks if an error reports conflicting declarations
func IsSchemaConflictError(err error) bool {
	return hasCode(err, ErrCodeSchemaConflict)
}

// IsMissingTypeError checks if an error reports an undeclarable parameter type
func IsMissingTypeError(err error) bool {
	return hasCode(err, ErrCodeMissingType)
}

// IsMissingNullabilityError checks if an error reports underived nullability
func IsMissingNullabilityError(err error) bool {
	return hasCode(err, ErrCodeMissingNullability)
}

// IsInvalidVersionError checks if an error reports an invalid declared version
func IsInvalidVersionError(err error) bool {
	return hasCode(err, ErrCodeInvalidVersion)
}

// IsMissingMigratorError checks if an error reports a versioned class without a migrator
func IsMissingMigratorError(err error) bool {
	return hasCode(err, ErrCodeMissingMigrator)
}

// IsUnknownNameError checks if an error reports an unknown parameter/embed name
func IsUnknownNameError(err error) bool {
	return hasCode(err, ErrCodeUnknownName)
}

// IsUnknownAdapterError checks if an error reports a storage adapter registry miss
func IsUnknownAdapterError(err error) bool {
	return hasCode(err, ErrCodeUnknownAdapter)
}

// IsUnknownTypeError checks if an error reports a type converter registry miss
func IsUnknownTypeError(err error) bool {
	return hasCode(err, ErrCodeUnknownType)
}

// IsUnknownMigratorError checks if an error reports a migrator registry miss
func IsUnknownMigratorError(err error) bool {
	return hasCode(err, ErrCodeUnknownMigrator)
}

// IsSchemaMismatchError checks if an error reports an object/schema mismatch
func IsSchemaMismatchError(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch)
}

// IsNoDefaultValueError checks if an error reports a missing reset default
func IsNoDefaultValueError(err error) bool {
	return hasCode(err, ErrCodeNoDefaultValue)
}

// IsConversionError checks if an error reports a converter failure
func IsConversionError(err error) bool {
	return hasCode(err, ErrCodeConversionFailed)
}

// IsMigrationError checks if an error reports a failed migration
func IsMigrationError(err error) bool {
	return hasCode(err, ErrCodeMigrationFailed)
}

// IsStorageError checks if an error reports a storage adapter failure
func IsStorageError(err error) bool {
	var se *SettingsError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeStorage
	}
	return false
}
