package domain

// Doctor is the read-only slice of a doctor profile this service needs.
type Doctor struct {
	ID       string `db:"id"        json:"id"`
	FullName string `db:"full_name" json:"fullName"`
	Email    string `db:"email"     json:"email"`
	Phone    string `db:"phone"     json:"phone"`
}

// Facility is the read-only slice of a facility profile this service needs.
type Facility struct {
	ID           string `db:"id"            json:"id"`
	Name         string `db:"name"          json:"name"`
	ContactEmail string `db:"contact_email" json:"contactEmail"`
	ContactPhone string `db:"contact_phone" json:"contactPhone"`
}

// Contact returns where facility notifications go.
func (f *Facility) Contact() Contact {
	return Contact{Name: f.Name, Email: f.ContactEmail, Phone: f.ContactPhone}
}

// Contact returns where doctor notifications go.
func (d *Doctor) Contact() Contact {
	return Contact{Name: d.FullName, Email: d.Email, Phone: d.Phone}
}
