package config

import "laundry-delivery/pkg/constants"

type UploadConfig struct {
	AllowedMimeTypes []string
	MaxSizeMB        int64
	PathPrefix       string
}

// фото-подтверждения водителя: только растровые изображения
var proofImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/jpg"}

var UploadContexts = map[constants.UploadContext]UploadConfig{
	constants.UploadContextPickupProof: {
		AllowedMimeTypes: proofImageTypes,
		MaxSizeMB:        15,
		PathPrefix:       "proofs/pickup",
	},
	constants.UploadContextDeliveryProof: {
		AllowedMimeTypes: proofImageTypes,
		MaxSizeMB:        15,
		PathPrefix:       "proofs/delivery",
	},
}
