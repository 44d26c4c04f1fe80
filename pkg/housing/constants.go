package housing

const (
	operationAllocate       = "allocate"
	operationCancel         = "cancel"
	operationComplete       = "complete"
	operationRecordPayment  = "record_payment"
	operationManualActivate = "manual_activate"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// PaymentModeOnline is applied when a caller omits the payment mode.
	PaymentModeOnline = "Online"
	// PaymentModeAdminManual marks payments synthesized by staff activation.
	PaymentModeAdminManual = "Admin Manual"

	manualTransactionPrefix = "ADMIN-"
	maxPaymentModeLength    = 50
	dateLayout              = "2006-01-02"
	percentScale            = 100
	defaultSweepBatchSize   = 100
)
