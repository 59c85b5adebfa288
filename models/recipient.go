package models

import "time"

// Recipient is a student/parent contact as supplied by the student data layer.
type Recipient struct {
	ID             string     `json:"id" bson:"_id" firestore:"id"`
	OrganizationID string     `json:"organizationId" bson:"organizationId" firestore:"organizationId"`
	Name           string     `json:"name" bson:"name" firestore:"name"`
	WhatsAppNumber string     `json:"whatsappNumber,omitempty" bson:"whatsappNumber,omitempty" firestore:"whatsappNumber,omitempty"`
	Email          string     `json:"email,omitempty" bson:"email,omitempty" firestore:"email,omitempty"`
	Phone          string     `json:"phone,omitempty" bson:"phone,omitempty" firestore:"phone,omitempty"`
	ClassID        string     `json:"classId,omitempty" bson:"classId,omitempty" firestore:"classId,omitempty"`
	ClassName      string     `json:"className,omitempty" bson:"className,omitempty" firestore:"className,omitempty"`
	CourseID       string     `json:"courseId,omitempty" bson:"courseId,omitempty" firestore:"courseId,omitempty"`
	CourseName     string     `json:"courseName,omitempty" bson:"courseName,omitempty" firestore:"courseName,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty" bson:"dueDate,omitempty" firestore:"dueDate,omitempty"`
	Amount         *float64   `json:"amount,omitempty" bson:"amount,omitempty" firestore:"amount,omitempty"`
	PaymentStatus  string     `json:"paymentStatus,omitempty" bson:"paymentStatus,omitempty" firestore:"paymentStatus,omitempty"`
}

// Address returns the number a WhatsApp message should go to, preferring the
// dedicated WhatsApp number over the plain phone.
func (r Recipient) Address() string {
	if r.WhatsAppNumber != "" {
		return r.WhatsAppNumber
	}
	return r.Phone
}

// FieldValue exposes string-comparable recipient fields by their JSON name.
func (r Recipient) FieldValue(field string) (string, bool) {
	switch field {
	case "id", "studentId":
		return r.ID, true
	case "name":
		return r.Name, true
	case "whatsappNumber":
		return r.WhatsAppNumber, true
	case "email":
		return r.Email, true
	case "phone":
		return r.Phone, true
	case "classId":
		return r.ClassID, true
	case "className":
		return r.ClassName, true
	case "courseId":
		return r.CourseID, true
	case "courseName":
		return r.CourseName, true
	case "paymentStatus":
		return r.PaymentStatus, true
	default:
		return "", false
	}
}
