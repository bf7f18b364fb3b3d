package client

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
)

const (
	requestDataField       = "RequestData"
	verificationTokenField = "__RequestVerificationToken"
)

// ExtractAuthorization reads RequestData and the anti-forgery token from the
// create-reservation form HTML.
func ExtractAuthorization(formHTML string) (AuthorizationRecord, error) {
	var rec AuthorizationRecord

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(formHTML))
	if err != nil {
		return rec, errors.Wrap(err, "failed to parse reservation form")
	}

	rec.RequestData = doc.Find("#" + requestDataField).First().AttrOr("value", "")
	if rec.RequestData == "" {
		// Some layouts only carry the name attribute.
		rec.RequestData = doc.Find("input[name='" + requestDataField + "']").First().AttrOr("value", "")
	}
	rec.VerificationToken = doc.Find("input[name='" + verificationTokenField + "']").First().AttrOr("value", "")

	if rec.RequestData == "" {
		return rec, errors.Wrapf(ErrTokenNotFound, "%s missing or empty", requestDataField)
	}
	if rec.VerificationToken == "" {
		return rec, errors.Wrapf(ErrTokenNotFound, "%s missing or empty", verificationTokenField)
	}
	return rec, nil
}

// HiddenFields collects every named hidden input in the form. A harvest logs
// them when token extraction fails so a layout change is easy to spot.
func HiddenFields(formHTML string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(formHTML))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse reservation form")
	}
	fields := make(map[string]string)
	doc.Find("input[type='hidden']").Each(func(i int, s *goquery.Selection) {
		name, exists := s.Attr("name")
		if exists && name != "" {
			fields[name] = s.AttrOr("value", "")
		}
	})
	return fields, nil
}
