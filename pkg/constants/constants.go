// pkg/constants/constants.go
package constants

//============== UPLOAD CONTEXTS ==============

// UploadContext определяет префикс каталога для загружаемых файлов.
type UploadContext string

const (
	UploadContextPickupProof   UploadContext = "pickup_proof"
	UploadContextDeliveryProof UploadContext = "delivery_proof"
)

func (uc UploadContext) String() string {
	return string(uc)
}

// ProofContext - куда складывать фото-подтверждения этапа.
func ProofContext(phase AssignmentPhase) UploadContext {
	if phase == PhaseDelivery {
		return UploadContextDeliveryProof
	}
	return UploadContextPickupProof
}

//============== ROLES ==============

// Role - роль пользователя, хранится в users.role.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
	RoleDriver   Role = "DRIVER"
)

// IsStaff - сотрудник прачечной или администратор.
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

//============== JOBS ==============

const (
	JobAutoComplete      = "order:autocomplete"
	JobProcessingSweep   = "order:processing-sweep"
	SystemActorName      = "system"
	ProcessingExpiredMsg = "время обработки истекло"
)
