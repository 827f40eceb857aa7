package errors

// Error codes returned in the "error" field of every failure response.
// Format: CATEGORY_SPECIFIC_DETAIL. Clients map these codes to copy.

const (
	// ==================== Session (SESSION_) ====================
	SessionRequired     = "SESSION_REQUIRED"      // no session token presented
	SessionTokenInvalid = "SESSION_TOKEN_INVALID" // token fails verification
	SessionTokenExpired = "SESSION_TOKEN_EXPIRED" // token past its expiry

	// ==================== Admin (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN" // admin API key missing or wrong

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"

	// ==================== Resource (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// ==================== Product (PRODUCT_) ====================
	ProductNotFound      = "PRODUCT_NOT_FOUND"
	ProductDuplicateName = "PRODUCT_DUPLICATE_NAME"

	// ==================== Cart (CART_) ====================
	InsufficientStock     = "INSUFFICIENT_STOCK"
	CartEmpty             = "EMPTY_CART"
	CartItemNotFound      = "CART_ITEM_NOT_FOUND"
	CartRemovalNotPending = "CART_REMOVAL_NOT_PENDING"
	CartInvalidQuantity   = "CART_INVALID_QUANTITY"
	CartItemChanged       = "CART_ITEM_CHANGED"

	// ==================== Order (ORDER_) ====================
	OrderNotFound = "ORDER_NOT_FOUND"

	// ==================== Upload (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFailed          = "UPLOAD_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalStoreWrite    = "INTERNAL_STORE_WRITE"
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"
)
