package models

import (
	"time"

	"gorm.io/gorm"
)

// MaintenanceRule is a catalog entry describing one preventive maintenance
// type and the odometer distance between two occurrences.
type MaintenanceRule struct {
	ID              string    `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	Name            string    `json:"name" bson:"name" gorm:"size:128;not null;uniqueIndex"`
	Description     string    `json:"description" bson:"description" gorm:"type:text"`
	MileageInterval int64     `json:"mileage_interval" bson:"mileage_interval" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (r *MaintenanceRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}

// DefaultRules is the catalog seeded when configuration does not provide one.
func DefaultRules() []MaintenanceRule {
	return []MaintenanceRule{
		{Name: "VIDANGE", Description: "Remplacement régulier de l'huile moteur", MileageInterval: 10000},
		{Name: "FILTRE HABITACLE", Description: "Remplacement du filtre à air de l'habitacle", MileageInterval: 20000},
		{Name: "FILTRE GASOIL", Description: "Remplacement du filtre à gasoil", MileageInterval: 30000},
		{Name: "PATIN FREIN", Description: "Vérification et remplacement des plaquettes de frein", MileageInterval: 30000},
		{Name: "LIQ FREIN", Description: "Vidange et remplacement du liquide de frein", MileageInterval: 40000},
		{Name: "LIQ REFROIDISSEMENT", Description: "Remplacement du liquide de refroidissement", MileageInterval: 50000},
		{Name: "POMPE A EAU", Description: "Vérification ou remplacement de la pompe à eau", MileageInterval: 60000},
		{Name: "DISQUE FREIN", Description: "Contrôle et remplacement des disques de frein", MileageInterval: 70000},
		{Name: "AMORTISSEUR", Description: "Contrôle et remplacement des amortisseurs", MileageInterval: 80000},
		{Name: "ROTULE", Description: "Vérification des rotules de direction", MileageInterval: 80000},
		{Name: "CHAINE", Description: "Contrôle et remplacement de la chaîne de distribution", MileageInterval: 100000},
		{Name: "COURROIE", Description: "Contrôle et remplacement de la courroie de distribution", MileageInterval: 100000},
		{Name: "MACHOIR DE FREIN A TOMBOUR", Description: "Remplacement des mâchoires de frein à tambour", MileageInterval: 120000},
		{Name: "CARDANS + ROULEMENTS", Description: "Vérification des cardans et roulements de roue", MileageInterval: 120000},
		{Name: "EMBRAYAGE", Description: "Contrôle et remplacement du kit d'embrayage", MileageInterval: 150000},
	}
}
