package paymentgateway

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	paymentmodel "github.com/frahmantamala/account-rental/internal/core/datamodel/payment"
)

const (
	PathAccessToken  = "/v1.0/access-token/b2b"
	PathQRGenerate   = "/v1.0/qr/qr-mpm-generate"
	PathQRQuery      = "/v1.0/qr/qr-mpm-query"
	PathQRNotify     = "/v1.0/qr/qr-mpm-notify"
	PathVACreate     = "/v1.0/transfer-va/create-va"
	PathVAStatus     = "/v1.0/transfer-va/status"
	PathVAInquiry    = "/v1.0/transfer-va/inquiry"
	PathVAPayment    = "/v1.0/transfer-va/payment"
	PathLegacyNotify = "/payment/notify"
)

const (
	CodeAccessTokenOK = "2007300"
	CodeQRGenerateOK  = "2004700"
	CodeQRQueryOK     = "2005100"
	CodeVACreateOK    = "2002700"
	CodeVAStatusOK    = "2002600"

	CodeInquiryOK          = "2002400"
	CodeInquiryBadRequest  = "4002402"
	CodeInquiryNotFound    = "4042412"
	CodeInquiryPaid        = "4042414"
	CodeInquiryExpired     = "4042419"
	CodeInquiryBadSig      = "4012400"
	CodeInquiryInternalErr = "5002400"

	CodePaymentOK          = "2002500"
	CodePaymentBadRequest  = "4002502"
	CodePaymentNotFound    = "4042512"
	CodePaymentAmountWrong = "4042513"
	CodePaymentBadSig      = "4012500"
	CodePaymentInternalErr = "5002500"

	CodeNotifyOK          = "2005200"
	CodeNotifyBadRequest  = "4005202"
	CodeNotifyNotFound    = "4045201"
	CodeNotifyBadSig      = "4015200"
	CodeNotifyInternalErr = "5005200"

	LegacyResponseOK       = "00"
	LegacyResponseNotFound = "01"
	LegacyResponseBadSig   = "03"
	LegacyResponseError    = "05"
)

type SessionRequest struct {
	PartnerReferenceNo string
	Amount             decimal.Decimal
	Currency           string
	CustomerNo         string
	CustomerName       string
	ExpiresAt          time.Time
}

func (r *SessionRequest) Validate() error {
	if r.PartnerReferenceNo == "" {
		return errors.New("partner reference is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than 0")
	}
	return nil
}

// CustomerNumber derives the twelve digit VA customer number for a payment reference. Attempt 0
// is the plain derivation; later attempts salt the reference so a number already held by another
// pending payment can be skipped.
func CustomerNumber(reference string, attempt int) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(reference))
	if attempt > 0 {
		_, _ = fmt.Fprintf(h, "#%d", attempt)
	}
	return fmt.Sprintf("%012d", h.Sum64()%1_000_000_000_000)
}

// Session is what the provider hands back for a newly opened payment attempt.
type Session struct {
	Method            paymentmodel.Method
	ProviderPaymentID string
	QRURL             string
	BankAccountNo     string
	BankAccountName   string
	ExpiresAt         *time.Time
	Raw               []byte
}

type StatusRequest struct {
	Method             paymentmodel.Method
	PartnerReferenceNo string
	ProviderPaymentID  string
	BankAccountNo      string
}

type StatusResult struct {
	Status              paymentmodel.Status
	RawStatus           string
	ProviderReferenceNo string
	PaidAt              *time.Time
	Raw                 []byte
}

// ----------------- WIRE FORMAT -----------------

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

func NewAmount(v decimal.Decimal, currency string) Amount {
	return Amount{Value: v.StringFixed(2), Currency: currency}
}

type AccessTokenRequest struct {
	GrantType string `json:"grantType"`
}

type AccessTokenResponse struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	AccessToken     string `json:"accessToken"`
	TokenType       string `json:"tokenType"`
	ExpiresIn       string `json:"expiresIn"`
}

type QRGenerateRequest struct {
	PartnerReferenceNo string            `json:"partnerReferenceNo"`
	Amount             Amount            `json:"amount"`
	MerchantID         string            `json:"merchantId,omitempty"`
	StoreID            string            `json:"storeId,omitempty"`
	TerminalID         string            `json:"terminalId,omitempty"`
	ValidityPeriod     string            `json:"validityPeriod,omitempty"`
	AdditionalInfo     map[string]string `json:"additionalInfo,omitempty"`
}

type QRGenerateResponse struct {
	ResponseCode       string `json:"responseCode"`
	ResponseMessage    string `json:"responseMessage"`
	ReferenceNo        string `json:"referenceNo"`
	PartnerReferenceNo string `json:"partnerReferenceNo"`
	QRContent          string `json:"qrContent"`
	QRURL              string `json:"qrUrl"`
	ValidityPeriod     string `json:"validityPeriod"`
}

type CreateVARequest struct {
	PartnerServiceID   string            `json:"partnerServiceId"`
	CustomerNo         string            `json:"customerNo"`
	VirtualAccountNo   string            `json:"virtualAccountNo"`
	VirtualAccountName string            `json:"virtualAccountName"`
	TrxID              string            `json:"trxId"`
	TotalAmount        Amount            `json:"totalAmount"`
	ExpiredDate        string            `json:"expiredDate,omitempty"`
	AdditionalInfo     map[string]string `json:"additionalInfo,omitempty"`
}

type VirtualAccountData struct {
	PartnerServiceID   string            `json:"partnerServiceId"`
	CustomerNo         string            `json:"customerNo"`
	VirtualAccountNo   string            `json:"virtualAccountNo"`
	VirtualAccountName string            `json:"virtualAccountName"`
	TrxID              string            `json:"trxId,omitempty"`
	InquiryRequestID   string            `json:"inquiryRequestId,omitempty"`
	PaymentRequestID   string            `json:"paymentRequestId,omitempty"`
	TotalAmount        *Amount           `json:"totalAmount,omitempty"`
	PaidAmount         *Amount           `json:"paidAmount,omitempty"`
	ExpiredDate        string            `json:"expiredDate,omitempty"`
	PaymentFlagStatus  string            `json:"paymentFlagStatus,omitempty"`
	AdditionalInfo     map[string]string `json:"additionalInfo,omitempty"`
}

type CreateVAResponse struct {
	ResponseCode       string             `json:"responseCode"`
	ResponseMessage    string             `json:"responseMessage"`
	VirtualAccountData VirtualAccountData `json:"virtualAccountData"`
}

type StatusQueryRequest struct {
	OriginalPartnerReferenceNo string `json:"originalPartnerReferenceNo"`
	OriginalReferenceNo        string `json:"originalReferenceNo,omitempty"`
	VirtualAccountNo           string `json:"virtualAccountNo,omitempty"`
	ServiceCode                string `json:"serviceCode,omitempty"`
}

type StatusQueryResponse struct {
	ResponseCode               string            `json:"responseCode"`
	ResponseMessage            string            `json:"responseMessage"`
	OriginalReferenceNo        string            `json:"originalReferenceNo"`
	OriginalPartnerReferenceNo string            `json:"originalPartnerReferenceNo"`
	LatestTransactionStatus    string            `json:"latestTransactionStatus"`
	TransactionStatusDesc      string            `json:"transactionStatusDesc"`
	PaidTime                   string            `json:"paidTime"`
	Amount                     *Amount           `json:"amount,omitempty"`
	AdditionalInfo             map[string]string `json:"additionalInfo,omitempty"`
}

// Notification is the body of the modern payment webhook.
type Notification struct {
	OriginalReferenceNo        string            `json:"originalReferenceNo"`
	OriginalPartnerReferenceNo string            `json:"originalPartnerReferenceNo" validate:"required"`
	LatestTransactionStatus    string            `json:"latestTransactionStatus" validate:"required"`
	TransactionStatusDesc      string            `json:"transactionStatusDesc"`
	PaidTime                   string            `json:"paidTime"`
	Amount                     *Amount           `json:"amount,omitempty"`
	AdditionalInfo             map[string]string `json:"additionalInfo,omitempty"`
}

type NotificationAck struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

type VAInquiryRequest struct {
	PartnerServiceID string            `json:"partnerServiceId"`
	CustomerNo       string            `json:"customerNo"`
	VirtualAccountNo string            `json:"virtualAccountNo" validate:"required"`
	TrxDateInit      string            `json:"trxDateInit,omitempty"`
	ChannelCode      int               `json:"channelCode,omitempty"`
	InquiryRequestID string            `json:"inquiryRequestId" validate:"required"`
	AdditionalInfo   map[string]string `json:"additionalInfo,omitempty"`
}

type VAInquiryResponse struct {
	ResponseCode       string              `json:"responseCode"`
	ResponseMessage    string              `json:"responseMessage"`
	VirtualAccountData *VirtualAccountData `json:"virtualAccountData,omitempty"`
}

type VAPaymentRequest struct {
	PartnerServiceID   string            `json:"partnerServiceId"`
	CustomerNo         string            `json:"customerNo"`
	VirtualAccountNo   string            `json:"virtualAccountNo" validate:"required"`
	VirtualAccountName string            `json:"virtualAccountName"`
	PaymentRequestID   string            `json:"paymentRequestId" validate:"required"`
	PaidAmount         Amount            `json:"paidAmount"`
	TrxDateTime        string            `json:"trxDateTime"`
	ReferenceNo        string            `json:"referenceNo"`
	AdditionalInfo     map[string]string `json:"additionalInfo,omitempty"`
}

type VAPaymentResponse struct {
	ResponseCode       string              `json:"responseCode"`
	ResponseMessage    string              `json:"responseMessage"`
	VirtualAccountData *VirtualAccountData `json:"virtualAccountData,omitempty"`
}

// LegacyNotification is the older form-style merchant notification.
type LegacyNotification struct {
	Request           string `json:"request"`
	TrxID             string `json:"trx_id"`
	MerchantID        string `json:"merchant_id"`
	Merchant          string `json:"merchant"`
	BillNo            string `json:"bill_no" validate:"required"`
	PaymentReff       string `json:"payment_reff"`
	PaymentDate       string `json:"payment_date"`
	PaymentStatusCode string `json:"payment_status_code" validate:"required"`
	PaymentStatusDesc string `json:"payment_status_desc"`
	BillTotal         string `json:"bill_total"`
	PaymentTotal      string `json:"payment_total"`
	Signature         string `json:"signature" validate:"required"`
}

type LegacyNotificationResponse struct {
	Response     string `json:"response"`
	TrxID        string `json:"trx_id"`
	MerchantID   string `json:"merchant_id"`
	Merchant     string `json:"merchant"`
	BillNo       string `json:"bill_no"`
	ResponseCode string `json:"response_code"`
	ResponseDesc string `json:"response_desc"`
	ResponseDate string `json:"response_date"`
}

// ----------------- STATUS MAPPING -----------------

// MapStatus translates latestTransactionStatus. Unknown codes are FAILED, never SUCCESS or PENDING.
func MapStatus(code string) paymentmodel.Status {
	switch strings.TrimSpace(code) {
	case "00":
		return paymentmodel.StatusSuccess
	case "01", "02", "03":
		return paymentmodel.StatusPending
	case "04":
		return paymentmodel.StatusRefunded
	case "05":
		return paymentmodel.StatusCancelled
	case "06":
		return paymentmodel.StatusFailed
	default:
		return paymentmodel.StatusFailed
	}
}

// MapLegacyStatus translates payment_status_code of the legacy notification.
func MapLegacyStatus(code string) paymentmodel.Status {
	switch strings.TrimSpace(code) {
	case "2":
		return paymentmodel.StatusSuccess
	case "0", "1":
		return paymentmodel.StatusPending
	case "3":
		return paymentmodel.StatusFailed
	case "4":
		return paymentmodel.StatusRefunded
	case "7":
		return paymentmodel.StatusExpired
	case "8":
		return paymentmodel.StatusCancelled
	default:
		return paymentmodel.StatusFailed
	}
}
