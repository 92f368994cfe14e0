package services

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/spf13/viper"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

// SettlementService turns the synced portion of the ledger into an ISO 20022
// pacs.008 export for the canteen's finance back office. Only entries the
// reconciler has committed remotely are exported; pending entries stay out
// until their cycle completes.
type SettlementService struct {
	store *store.AccountStore
}

func NewSettlementService(accounts *store.AccountStore) *SettlementService {
	return &SettlementService{store: accounts}
}

// Export builds the pacs.008 settlement file
// @Summary Export settlement file
// @Description Export synced debit entries as an ISO 20022 pacs.008 credit transfer message
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{status=string,messageType=string,entries=int,xml=string}
// @Failure 500 {object} ErrorResponse
// @Router /settlement/export [get]
func (s *SettlementService) Export(w http.ResponseWriter, r *http.Request) {
	var settled []settledEntry
	for _, account := range s.store.Accounts() {
		for _, e := range account.Log {
			if e.Direction == models.DirectionDebit && e.SyncState == models.SyncSynced {
				settled = append(settled, settledEntry{account: account, entry: e})
			}
		}
	}

	if len(settled) == 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "empty",
			"entries": 0,
		})
		return
	}

	doc := s.buildPacs008(settled)
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		SendErrorResponse(w, fmt.Sprintf("failed to marshal XML: %v", err), http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[SETTLEMENT] Exported %d settled entries as pacs.008", len(settled))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "exported",
		"messageType": "pacs.008.001.08",
		"entries":     len(settled),
		"xml":         xml.Header + string(xmlData),
	})
}

type settledEntry struct {
	account models.Account
	entry   models.TransactionEntry
}

func (s *SettlementService) buildPacs008(settled []settledEntry) *pacs_v08.FIToFICustomerCreditTransferV08 {
	currency := viper.GetString("settlement.currency")
	if currency == "" {
		currency = "XTS"
	}
	operator := viper.GetString("settlement.operator")
	if operator == "" {
		operator = "CANTEENP"
	}

	now := time.Now()
	var total float64
	for _, se := range settled {
		total += float64(se.entry.Amount)
	}

	txs := make([]pacs_v08.CreditTransferTransaction39, 0, len(settled))
	for _, se := range settled {
		settlementDate := se.entry.Timestamp
		txs = append(txs, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &[]common.Max35Text{common.Max35Text(se.entry.ID)}[0],
				EndToEndId: common.Max35Text(se.entry.ID),
				TxId:       &[]common.Max35Text{common.Max35Text(se.entry.ID)}[0],
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: float64(se.entry.Amount),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(operator)}[0],
				},
			},
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(se.account.DisplayName)}[0],
			},
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
						MmbId: common.Max35Text(se.account.ExternalID),
					},
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(se.entry.Description)}[0],
			},
		})
	}

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(uuid.New().String()),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: common.Max15NumericText(fmt.Sprintf("%d", len(settled))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: total,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: txs,
	}
}
