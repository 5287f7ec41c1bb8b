package navigation

import (
	"github.com/clinicore/clinic-portal/internal/identity"
)

// MenuItem is one sidebar entry.
type MenuItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon,omitempty"`
}

var (
	itemDashboard    = MenuItem{Label: "Dashboard", Path: "/dashboard", Icon: "home"}
	itemAppointments = MenuItem{Label: "Appointments", Path: "/appointments", Icon: "calendar"}
	itemNotes        = MenuItem{Label: "Clinical Notes", Path: "/notes", Icon: "clipboard"}
	itemBilling      = MenuItem{Label: "Billing", Path: "/billing", Icon: "credit-card"}
	itemWaitTimes    = MenuItem{Label: "Wait Times", Path: "/wait-times", Icon: "clock"}
	itemAdmin        = MenuItem{Label: "Administration", Path: "/admin", Icon: "settings"}
)

// menus maps each role to the sections it may see. Admins see everything;
// clinical staff see scheduling and charting; billing staff see payments.
var menus = map[identity.Role][]MenuItem{
	identity.RoleAdmin:        {itemDashboard, itemAppointments, itemNotes, itemBilling, itemWaitTimes, itemAdmin},
	identity.RolePhysician:    {itemDashboard, itemAppointments, itemNotes, itemWaitTimes},
	identity.RoleNurse:        {itemDashboard, itemAppointments, itemNotes, itemWaitTimes},
	identity.RoleReceptionist: {itemDashboard, itemAppointments, itemWaitTimes},
	identity.RoleBilling:      {itemDashboard, itemBilling, itemWaitTimes},
}

// MenuFor returns the sidebar for a role. Unknown roles get an empty menu
// rather than an error; the auth layer rejects them before this point.
func MenuFor(role identity.Role) []MenuItem {
	items, ok := menus[role]
	if !ok {
		return []MenuItem{}
	}
	out := make([]MenuItem, len(items))
	copy(out, items)
	return out
}
