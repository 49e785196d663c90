package ast

// Program is the root node produced by parsing one module file.
type Program struct {
	Node
	Module string
	Stmts  []Stmt
}

// BaseExprVisitor embeds into a concrete visitor to get a default
// no-op/zero-value implementation of every method, so a pass that only
// cares about a handful of node kinds (an expression simplifier, a free
// variable collector) can override just those and inherit the rest,
// matching partial-Visitor convention in its formatter
// pass rather than forcing every pass to implement the whole interface.
type BaseExprVisitor struct{}

func (BaseExprVisitor) VisitIntLit(*IntLit) any                       { return nil }
func (BaseExprVisitor) VisitRealLit(*RealLit) any                     { return nil }
func (BaseExprVisitor) VisitStringLit(*StringLit) any                 { return nil }
func (BaseExprVisitor) VisitSpecialStringLit(*SpecialStringLit) any   { return nil }
func (BaseExprVisitor) VisitRegexLit(*RegexLit) any                   { return nil }
func (BaseExprVisitor) VisitBoolLit(*BoolLit) any                     { return nil }
func (BaseExprVisitor) VisitNilLit(*NilLit) any                       { return nil }
func (BaseExprVisitor) VisitTagLit(*TagLit) any                       { return nil }
func (BaseExprVisitor) VisitIdent(*Ident) any                         { return nil }
func (BaseExprVisitor) VisitResourceBinding(*ResourceBinding) any     { return nil }
func (BaseExprVisitor) VisitSelfExpr(*SelfExpr) any                   { return nil }
func (BaseExprVisitor) VisitSuperExpr(*SuperExpr) any                 { return nil }
func (BaseExprVisitor) VisitPlaceholder(*Placeholder) any             { return nil }
func (BaseExprVisitor) VisitArrayLit(*ArrayLit) any                   { return nil }
func (BaseExprVisitor) VisitArrayCompr(*ArrayCompr) any               { return nil }
func (BaseExprVisitor) VisitDictLit(*DictLit) any                     { return nil }
func (BaseExprVisitor) VisitDictCompr(*DictCompr) any                 { return nil }
func (BaseExprVisitor) VisitTupleLit(*TupleLit) any                   { return nil }
func (BaseExprVisitor) VisitBinaryExpr(*BinaryExpr) any               { return nil }
func (BaseExprVisitor) VisitUnaryExpr(*UnaryExpr) any                 { return nil }
func (BaseExprVisitor) VisitAssignExpr(*AssignExpr) any               { return nil }
func (BaseExprVisitor) VisitCondExpr(*CondExpr) any                   { return nil }
func (BaseExprVisitor) VisitCallExpr(*CallExpr) any                   { return nil }
func (BaseExprVisitor) VisitMethodCallExpr(*MethodCallExpr) any       { return nil }
func (BaseExprVisitor) VisitIndexExpr(*IndexExpr) any                 { return nil }
func (BaseExprVisitor) VisitSliceExpr(*SliceExpr) any                 { return nil }
func (BaseExprVisitor) VisitMemberExpr(*MemberExpr) any               { return nil }
func (BaseExprVisitor) VisitDynamicMemberExpr(*DynamicMemberExpr) any { return nil }
func (BaseExprVisitor) VisitFunctionExpr(*FunctionExpr) any           { return nil }
func (BaseExprVisitor) VisitTemplateExpr(*TemplateExpr) any           { return nil }
func (BaseExprVisitor) VisitTemplateHole(*TemplateHole) any           { return nil }
func (BaseExprVisitor) VisitMacroInvocation(*MacroInvocation) any     { return nil }
func (BaseExprVisitor) VisitEvalExpr(*EvalExpr) any                   { return nil }
func (BaseExprVisitor) VisitDefinedExpr(*DefinedExpr) any             { return nil }
func (BaseExprVisitor) VisitTypeofExpr(*TypeofExpr) any               { return nil }
func (BaseExprVisitor) VisitThrowExpr(*ThrowExpr) any                 { return nil }
func (BaseExprVisitor) VisitYieldExpr(*YieldExpr) any                 { return nil }
func (BaseExprVisitor) VisitWithExpr(*WithExpr) any                   { return nil }
func (BaseExprVisitor) VisitStmtExpr(*StmtExpr) any                   { return nil }
func (BaseExprVisitor) VisitCastExpr(*CastExpr) any                   { return nil }
func (BaseExprVisitor) VisitMatchExpr(*MatchExpr) any                 { return nil }
func (BaseExprVisitor) VisitBlockExpr(*BlockExpr) any                 { return nil }
func (BaseExprVisitor) VisitIfExpr(*IfExpr) any                       { return nil }
func (BaseExprVisitor) VisitMatchAny(*MatchAny) any                   { return nil }
func (BaseExprVisitor) VisitMatchNotNil(*MatchNotNil) any             { return nil }
func (BaseExprVisitor) VisitMatchRest(*MatchRest) any                 { return nil }
func (BaseExprVisitor) VisitAliasPattern(*AliasPattern) any           { return nil }
func (BaseExprVisitor) VisitTagPattern(*TagPattern) any               { return nil }
func (BaseExprVisitor) VisitViewPattern(*ViewPattern) any             { return nil }
func (BaseExprVisitor) VisitChoicePattern(*ChoicePattern) any         { return nil }
func (BaseExprVisitor) VisitResourcePattern(*ResourcePattern) any     { return nil }
func (BaseExprVisitor) VisitSpreadPattern(*SpreadPattern) any         { return nil }

// BaseStmtVisitor is StmtVisitor's analogue of BaseExprVisitor.
type BaseStmtVisitor struct{}

func (BaseStmtVisitor) VisitForStmt(*ForStmt) any                     { return nil }
func (BaseStmtVisitor) VisitEachStmt(*EachStmt) any                   { return nil }
func (BaseStmtVisitor) VisitWhileStmt(*WhileStmt) any                 { return nil }
func (BaseStmtVisitor) VisitWhileMatchStmt(*WhileMatchStmt) any       { return nil }
func (BaseStmtVisitor) VisitDefinitionStmt(*DefinitionStmt) any       { return nil }
func (BaseStmtVisitor) VisitFunctionDefStmt(*FunctionDefStmt) any     { return nil }
func (BaseStmtVisitor) VisitMacroDefStmt(*MacroDefStmt) any           { return nil }
func (BaseStmtVisitor) VisitFunMacroDefStmt(*FunMacroDefStmt) any     { return nil }
func (BaseStmtVisitor) VisitOperatorDefStmt(*OperatorDefStmt) any     { return nil }
func (BaseStmtVisitor) VisitTagDefStmt(*TagDefStmt) any               { return nil }
func (BaseStmtVisitor) VisitClassDefStmt(*ClassDefStmt) any           { return nil }
func (BaseStmtVisitor) VisitTraitDefStmt(*TraitDefStmt) any           { return nil }
func (BaseStmtVisitor) VisitTypeDefStmt(*TypeDefStmt) any             { return nil }
func (BaseStmtVisitor) VisitIfStmt(*IfStmt) any                       { return nil }
func (BaseStmtVisitor) VisitIfLetStmt(*IfLetStmt) any                 { return nil }
func (BaseStmtVisitor) VisitMatchStmt(*MatchStmt) any                 { return nil }
func (BaseStmtVisitor) VisitReturnStmt(*ReturnStmt) any               { return nil }
func (BaseStmtVisitor) VisitGeneratorReturnStmt(*GeneratorReturnStmt) any { return nil }
func (BaseStmtVisitor) VisitNextStmt(*NextStmt) any                   { return nil }
func (BaseStmtVisitor) VisitContinueStmt(*ContinueStmt) any           { return nil }
func (BaseStmtVisitor) VisitBreakStmt(*BreakStmt) any                 { return nil }
func (BaseStmtVisitor) VisitTryStmt(*TryStmt) any                     { return nil }
func (BaseStmtVisitor) VisitDeferStmt(*DeferStmt) any                 { return nil }
func (BaseStmtVisitor) VisitCleanupStmt(*CleanupStmt) any             { return nil }
func (BaseStmtVisitor) VisitTryCleanStmt(*TryCleanStmt) any           { return nil }
func (BaseStmtVisitor) VisitDropStmt(*DropStmt) any                   { return nil }
func (BaseStmtVisitor) VisitBlockStmt(*BlockStmt) any                 { return nil }
func (BaseStmtVisitor) VisitMultiStmt(*MultiStmt) any                 { return nil }
func (BaseStmtVisitor) VisitHaltStmt(*HaltStmt) any                   { return nil }
func (BaseStmtVisitor) VisitNullStmt(*NullStmt) any                   { return nil }
func (BaseStmtVisitor) VisitExpressionStmt(*ExpressionStmt) any       { return nil }
func (BaseStmtVisitor) VisitImportStmt(*ImportStmt) any               { return nil }
func (BaseStmtVisitor) VisitExportStmt(*ExportStmt) any               { return nil }
func (BaseStmtVisitor) VisitUseStmt(*UseStmt) any                     { return nil }
func (BaseStmtVisitor) VisitSetTypeStmt(*SetTypeStmt) any             { return nil }
