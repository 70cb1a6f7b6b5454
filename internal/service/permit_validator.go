package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/permitflow-api/internal/dto"
	"github.com/noah-isme/permitflow-api/internal/models"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
)

// Contact numbers are 10 to 13 characters long, a leading + included.
var contactNumberPattern = regexp.MustCompile(`^(?:\+[0-9]{9,12}|[0-9]{10,13})$`)

// PermitValidator checks submissions against the schema and the injected catalog.
type PermitValidator struct {
	validate *validator.Validate
	catalog  models.Catalog
}

// NewPermitValidator registers the permit rules on validate (a fresh validator when nil).
func NewPermitValidator(validate *validator.Validate, catalog models.Catalog) *PermitValidator {
	if validate == nil {
		validate = validator.New()
	}
	v := &PermitValidator{validate: validate, catalog: catalog}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("siteid", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), func(r rune) bool { return r == '/' || unicode.IsSpace(r) })
	})
	_ = validate.RegisterValidation("region", func(fl validator.FieldLevel) bool {
		return v.catalog.HasRegion(fl.Field().String())
	})
	_ = validate.RegisterValidation("worktype", func(fl validator.FieldLevel) bool {
		return v.catalog.HasWorkType(fl.Field().String())
	})
	_ = validate.RegisterValidation("toolboxtalk", func(fl validator.FieldLevel) bool {
		return v.catalog.HasToolBoxTalk(fl.Field().String())
	})
	_ = validate.RegisterValidation("approver", func(fl validator.FieldLevel) bool {
		return v.catalog.ApproverAllowed(fl.Field().String())
	})
	_ = validate.RegisterValidation("contactnumber", func(fl validator.FieldLevel) bool {
		return contactNumberPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("permissiondate", func(fl validator.FieldLevel) bool {
		_, err := parsePermissionDate(fl.Field().String())
		return err == nil
	})
	validate.RegisterStructValidation(v.crossFieldRules, dto.SubmitPermitRequest{})
	return v
}

func (v *PermitValidator) crossFieldRules(sl validator.StructLevel) {
	req := sl.Current().Interface().(dto.SubmitPermitRequest)

	if v.catalog.HasRegion(req.Region) && req.Circle != "" && !v.catalog.HasCircle(req.Region, req.Circle) {
		sl.ReportError(req.Circle, "circle", "Circle", "circle", req.Region)
	}
	for _, wt := range req.WorkTypes {
		if wt == models.WorkTypeOther && req.OtherWorkDescription == "" {
			sl.ReportError(req.OtherWorkDescription, "otherWorkDescription", "OtherWorkDescription", "otherdesc", "")
			break
		}
	}
	if req.RequesterEmail != "" && strings.EqualFold(req.RequesterEmail, req.ApproverEmail) {
		sl.ReportError(req.ApproverEmail, "approverEmail", "ApproverEmail", "differs", "requesterEmail")
	}
	if !req.Declaration {
		sl.ReportError(req.Declaration, "declaration", "Declaration", "declaration", "")
	}
}

// Validate normalises the request and returns the permit data, or a validation error listing
// every violated field.
func (v *PermitValidator) Validate(req dto.SubmitPermitRequest) (models.PermitData, error) {
	req = trimRequest(req)
	if err := v.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return models.PermitData{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Validation failed: invalid payload")
		}
		messages := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			messages = append(messages, fieldPath(fe)+": "+fieldMessage(fe))
		}
		return models.PermitData{}, appErrors.Clone(appErrors.ErrValidation, "Validation failed: "+strings.Join(messages, ", "))
	}

	permissionDate, _ := parsePermissionDate(req.PermissionDate)
	return models.PermitData{
		RequesterCompany:     req.RequesterCompany,
		SiteName:             req.SiteName,
		SiteID:               req.SiteID,
		Region:               req.Region,
		Circle:               req.Circle,
		TeamMembers:          req.TeamMembers,
		WorkTypes:            req.WorkTypes,
		OtherWorkDescription: req.OtherWorkDescription,
		RiskAssessment:       req.RiskAssessment,
		PPEConfirmation:      req.PPEConfirmation,
		ToolBoxTalks:         req.ToolBoxTalks,
		PermissionDate:       permissionDate,
		RequesterEmail:       req.RequesterEmail,
		ApproverEmail:        req.ApproverEmail,
		ContactNumber:        req.ContactNumber,
		Declaration:          req.Declaration,
	}, nil
}

func trimRequest(req dto.SubmitPermitRequest) dto.SubmitPermitRequest {
	req.RequesterCompany = strings.TrimSpace(req.RequesterCompany)
	req.SiteName = strings.TrimSpace(req.SiteName)
	req.SiteID = strings.TrimSpace(req.SiteID)
	req.Region = strings.TrimSpace(req.Region)
	req.Circle = strings.TrimSpace(req.Circle)
	req.OtherWorkDescription = strings.TrimSpace(req.OtherWorkDescription)
	req.PermissionDate = strings.TrimSpace(req.PermissionDate)
	req.RequesterEmail = strings.TrimSpace(req.RequesterEmail)
	req.ApproverEmail = strings.TrimSpace(req.ApproverEmail)
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)

	members := make([]models.TeamMember, len(req.TeamMembers))
	for i, m := range req.TeamMembers {
		members[i] = models.TeamMember{Name: strings.TrimSpace(m.Name), FarmOrToclip: strings.TrimSpace(m.FarmOrToclip)}
	}
	req.TeamMembers = members
	return req
}

func parsePermissionDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

// fieldPath strips the root struct name, e.g. "SubmitPermitRequest.teamMembers[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must contain at least one entry"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), "' '", "', '")
	case "siteid":
		return "must not contain '/' or whitespace"
	case "region":
		return "is not a known region"
	case "circle":
		return "does not belong to region " + fe.Param()
	case "worktype":
		return "is not a known work type"
	case "toolboxtalk":
		return "is not a known tool-box talk"
	case "approver":
		return "is not an authorised approver"
	case "contactnumber":
		return "must be 10 to 13 digits"
	case "permissiondate":
		return "must be an RFC3339 timestamp or a YYYY-MM-DD date"
	case "otherdesc":
		return "is required when work type Other is selected"
	case "differs":
		return "cannot be the same as the requester email"
	case "declaration":
		return "must be accepted"
	default:
		return "is invalid"
	}
}
