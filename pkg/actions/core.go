package actions

import "github.com/xplshn/ncsdec/pkg/ncs"

// coreSignatures covers the first stretch of the stock nwscript.nss table.
// Slot counts, not argument counts: a vector parameter contributes three.
var coreSignatures = []Signature{
	{0, "Random", 1, ncs.Int},
	{1, "PrintString", 1, ncs.Void},
	{2, "PrintFloat", 3, ncs.Void},
	{3, "FloatToString", 3, ncs.String},
	{4, "PrintInteger", 1, ncs.Void},
	{5, "PrintObject", 1, ncs.Void},
	{6, "AssignCommand", 2, ncs.Void},
	{7, "DelayCommand", 2, ncs.Void},
	{8, "ExecuteScript", 2, ncs.Void},
	{9, "ClearAllActions", 0, ncs.Void},
	{10, "SetFacing", 1, ncs.Void},
	{11, "SetCalendar", 3, ncs.Void},
	{12, "SetTime", 4, ncs.Void},
	{13, "GetCalendarYear", 0, ncs.Int},
	{14, "GetCalendarMonth", 0, ncs.Int},
	{15, "GetCalendarDay", 0, ncs.Int},
	{16, "GetTimeHour", 0, ncs.Int},
	{17, "GetTimeMinute", 0, ncs.Int},
	{18, "GetTimeSecond", 0, ncs.Int},
	{19, "GetTimeMillisecond", 0, ncs.Int},
	{20, "ActionRandomWalk", 0, ncs.Void},
	{21, "ActionMoveToLocation", 2, ncs.Void},
	{22, "ActionMoveToObject", 3, ncs.Void},
	{23, "ActionMoveAwayFromObject", 3, ncs.Void},
	{24, "GetArea", 1, ncs.Object},
	{25, "GetEnteringObject", 0, ncs.Object},
	{26, "GetExitingObject", 0, ncs.Object},
	{27, "GetPosition", 1, ncs.Vector},
	{28, "GetFacing", 1, ncs.Float},
	{29, "GetItemPossessor", 1, ncs.Object},
	{30, "GetItemPossessedBy", 2, ncs.Object},
	{31, "CreateItemOnObject", 3, ncs.Object},
	{32, "ActionEquipItem", 2, ncs.Void},
	{33, "ActionUnequipItem", 1, ncs.Void},
	{34, "ActionPickUpItem", 1, ncs.Void},
	{35, "ActionPutDownItem", 1, ncs.Void},
	{36, "GetLastAttacker", 1, ncs.Object},
	{37, "ActionAttack", 2, ncs.Void},
	{38, "GetNearestCreature", 8, ncs.Object},
	{39, "ActionSpeakString", 2, ncs.Void},
	{40, "ActionPlayAnimation", 3, ncs.Void},
	{41, "GetDistanceToObject", 1, ncs.Float},
	{42, "GetIsObjectValid", 1, ncs.Int},
	{43, "ActionOpenDoor", 1, ncs.Void},
	{44, "ActionCloseDoor", 1, ncs.Void},
	{45, "SetCameraFacing", 1, ncs.Void},
	{46, "PlaySound", 1, ncs.Void},
	{47, "GetSpellTargetObject", 0, ncs.Object},
	{48, "ActionCastSpellAtObject", 7, ncs.Void},
	{49, "GetCurrentHitPoints", 1, ncs.Int},
	{50, "GetMaxHitPoints", 1, ncs.Int},
	{51, "GetLocalInt", 2, ncs.Int},
	{52, "GetLocalFloat", 2, ncs.Float},
	{53, "GetLocalString", 2, ncs.String},
	{54, "GetLocalObject", 2, ncs.Object},
	{55, "SetLocalInt", 3, ncs.Void},
	{56, "SetLocalFloat", 3, ncs.Void},
	{57, "SetLocalString", 3, ncs.Void},
	{58, "SetLocalObject", 3, ncs.Void},
	{59, "GetStringLength", 1, ncs.Int},
	{60, "GetStringUpperCase", 1, ncs.String},
	{61, "GetStringLowerCase", 1, ncs.String},
	{62, "GetStringRight", 2, ncs.String},
	{63, "GetStringLeft", 2, ncs.String},
	{64, "InsertString", 3, ncs.String},
	{65, "GetSubString", 3, ncs.String},
	{66, "FindSubString", 2, ncs.Int},
	{67, "fabs", 1, ncs.Float},
	{68, "cos", 1, ncs.Float},
	{69, "sin", 1, ncs.Float},
	{70, "tan", 1, ncs.Float},
	{71, "acos", 1, ncs.Float},
	{72, "asin", 1, ncs.Float},
	{73, "atan", 1, ncs.Float},
	{74, "log", 1, ncs.Float},
	{75, "pow", 2, ncs.Float},
	{76, "sqrt", 1, ncs.Float},
	{77, "abs", 1, ncs.Int},
	{96, "GetLastItemEquipped", 0, ncs.Object},
	{102, "GetMetaMagicFeat", 0, ncs.Int},
	{104, "VectorMagnitude", 3, ncs.Float},
	{136, "GetPositionFromLocation", 1, ncs.Vector},
	{142, "Vector", 3, ncs.Vector},
	{143, "SetFacingPoint", 3, ncs.Void},
	{144, "AngleToVector", 1, ncs.Vector},
	{145, "VectorToAngle", 3, ncs.Float},
	{213, "GetLocation", 1, ncs.Location},
	{215, "Location", 5, ncs.Location},
	{223, "GetIsPC", 1, ncs.Int},
}
